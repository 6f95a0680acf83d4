package tslisp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	perrors "github.com/sambeau/tslisp/pkg/tslisp/errors"
	"github.com/sambeau/tslisp/pkg/tslisp/evaluator"
)

// DefaultDebounce is the quiet period between re-runs.
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-runs a script whenever it, or a script in a watched directory,
// changes. Every run uses a fresh interpreter from NewInterpreter.
type Watcher struct {
	watcher  *fsnotify.Watcher
	script   string
	dirs     []string
	debounce time.Duration
	stdout   io.Writer
	stderr   io.Writer

	// NewInterpreter builds the interpreter for each run.
	NewInterpreter func() *Interpreter
	// AfterRun, when set, is called after every run.
	AfterRun func(result evaluator.Object, errs []*perrors.LispError)

	mu   sync.Mutex
	runs int
}

// NewWatcher creates a watcher for script. The script's own directory is
// always watched; dirs adds more.
func NewWatcher(script string, dirs []string, debounce time.Duration, stdout, stderr io.Writer) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsWatcher,
		script:   script,
		dirs:     dirs,
		debounce: debounce,
		stdout:   stdout,
		stderr:   stderr,
	}
	w.NewInterpreter = func() *Interpreter {
		return New(WithLogger(WriterLogger(w.stdout)))
	}
	return w, nil
}

// Start runs the script once, registers the watches and begins the event
// loop. The loop stops when ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	dirs := append([]string{filepath.Dir(w.script)}, w.dirs...)
	watched := 0
	for _, dir := range dirs {
		if err := w.watchDirRecursive(dir); err != nil {
			w.logError("failed to watch %s: %v", dir, err)
			continue
		}
		w.logInfo("watching: %s", dir)
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("watch: nothing to watch for %s", w.script)
	}

	w.run()
	go w.eventLoop(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		w.Close()
		return err
	}
	<-ctx.Done()
	return w.Close()
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	var changed string
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if isDir, scripts := w.addCreatedDir(event.Name); isDir {
					if scripts {
						changed = event.Name
						quiet.Reset(w.debounce)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			// Every change restarts the quiet period, so a burst of saves
			// ends in exactly one run that sees the last of them.
			changed = event.Name
			quiet.Reset(w.debounce)

		case <-quiet.C:
			w.logInfo("changed: %s", changed)
			w.run()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// addCreatedDir watches a directory created after Start. scripts reports
// whether it already holds script files written before the watch was added.
func (w *Watcher) addCreatedDir(path string) (isDir, scripts bool) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false, false
	}
	if strings.HasPrefix(info.Name(), ".") {
		return true, false
	}
	if err := w.watchDirRecursive(path); err != nil {
		w.logError("failed to watch %s: %v", path, err)
		return true, false
	}
	w.logInfo("watching: %s", path)

	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.relevant(p) {
			scripts = true
			return filepath.SkipAll
		}
		return nil
	})
	return true, scripts
}

// relevant reports whether a change to path should trigger a re-run.
func (w *Watcher) relevant(path string) bool {
	if filepath.Clean(path) == filepath.Clean(w.script) {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), evaluator.ScriptExt)
}

func (w *Watcher) run() {
	interp := w.NewInterpreter()
	result, errs, err := interp.RunFile(w.script)

	w.mu.Lock()
	w.runs++
	n := w.runs
	w.mu.Unlock()

	switch {
	case err != nil:
		w.logError("%v", err)
	case len(errs) > 0:
		for _, e := range errs {
			w.logError("%s", e.PrettyString())
		}
	default:
		w.logInfo("run %d ok: %s", n, result.Inspect())
	}
	if w.AfterRun != nil {
		w.AfterRun(result, errs)
	}
}

// Runs returns how many times the script has been run.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) logInfo(format string, args ...interface{}) {
	fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
}

func (w *Watcher) logError(format string, args ...interface{}) {
	fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
}
