// Package watcher provides real-time file system watching with automatic
// debouncing and ignore-aware filtering.
//
// Events are debounced to coalesce rapid changes from IDEs and git
// operations, and filtered against the same ignore rules and extension
// allow-list internal/walker applies to the initial scan.
//
// Usage:
//
//	opts := watcher.DefaultOptions()
//	w, err := watcher.NewFSWatcher(opts)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, "/path/to/project")
//
//	for batch := range w.Events() {
//	    for _, event := range batch {
//	        switch event.Operation {
//	        case watcher.OpCreate:
//	            // Handle file creation
//	        case watcher.OpModify:
//	            // Handle file modification
//	        case watcher.OpDelete:
//	            // Handle file deletion
//	        }
//	    }
//	}
package watcher
