package rpc

import "path/filepath"

const (
	// ServiceName identifies the release daemon.
	ServiceName = "org.shadowlab.spark.server"
	// DebugServiceName identifies the debug daemon.
	DebugServiceName = ServiceName + ".debug"
)

// Service returns the service name for the given variant.
func Service(debug bool) string {
	if debug {
		return DebugServiceName
	}
	return ServiceName
}

// SocketPath returns the unix socket location for the service in dir.
func SocketPath(dir string, debug bool) string {
	return filepath.Join(dir, Service(debug)+".sock")
}

// Method names a remote operation.
type Method string

// Top-level protocol operations.
const (
	MethodVersion  Method = "version"
	MethodLibrary  Method = "library"
	MethodShutdown Method = "shutdown"
)

// Library Store operations reached through the remote handle.
const (
	MethodCount                  Method = "library.count"
	MethodContainsTrigger        Method = "library.contains_trigger"
	MethodEntryForTrigger        Method = "library.entry_for_trigger"
	MethodActionForTrigger       Method = "library.action_for_trigger"
	MethodEntries                Method = "library.entries"
	MethodAddEntry               Method = "library.add_entry"
	MethodReplaceEntry           Method = "library.replace_entry"
	MethodRemoveEntry            Method = "library.remove_entry"
	MethodRemoveTrigger          Method = "library.remove_trigger"
	MethodRemoveAllEntries       Method = "library.remove_all_entries"
	MethodAddEntries             Method = "library.add_entries"
	MethodTriggersForApplication Method = "library.triggers_for_application"
	MethodSynchronize            Method = "library.synchronize"
	MethodRead                   Method = "library.read"
	MethodWriteToFile            Method = "library.write_to_file"
	MethodFileWrapper            Method = "library.file_wrapper"
	MethodReadFromFileWrapper    Method = "library.read_from_file_wrapper"
	MethodObjects                Method = "library.objects"
	MethodObject                 Method = "library.object"
	MethodAddObject              Method = "library.add_object"
	MethodUpdateObject           Method = "library.update_object"
	MethodRemoveObject           Method = "library.remove_object"
)

// Mutates reports whether m changes the library and must be followed by a
// synchronize before the reply.
func (m Method) Mutates() bool {
	switch m {
	case MethodAddEntry, MethodReplaceEntry, MethodRemoveEntry, MethodRemoveTrigger,
		MethodRemoveAllEntries, MethodAddEntries, MethodReadFromFileWrapper,
		MethodAddObject, MethodUpdateObject, MethodRemoveObject:
		return true
	}
	return false
}
