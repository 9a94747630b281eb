// Package config loads Spark settings.
//
// Settings are written in CUE. An embedded schema supplies every default, so
// a user file only names what it changes:
//
//	library: format: "text"
//	server: debug:  true
//
// The user file is spark.cue in the Spark folder unless a path is given.
package config
