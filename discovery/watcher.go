package discovery

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/go-lynx/scf/log"
)

// Watcher reports plugin modules that appear in watched directories.
type Watcher struct {
	fw      *fsnotify.Watcher
	onAdd   func(name, path string)
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

// Watch starts watching dirs and calls onAdd from a background goroutine for
// every plugin module created or moved into one of them.
func Watch(onAdd func(name, path string), dirs ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	w := &Watcher{fw: fw, onAdd: onAdd, done: make(chan struct{})}
	w.stopped.Add(1)
	go w.run()
	log.Infof("watching %d plugin directories", len(dirs))
	return w, nil
}

func (w *Watcher) run() {
	defer w.stopped.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := PluginName(event.Name)
			if name == "" {
				continue
			}
			log.Debugf("plugin module appeared: %s", event.Name)
			w.onAdd(name, event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warnf("plugin directory watch: %v", err)
		}
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.stopped.Wait()
	})
	return err
}
