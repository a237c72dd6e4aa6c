package config

import (
	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the file on every write and hands the decoded config to
// onChange. Files that fail validation are reported through onError and
// otherwise ignored, so a bad edit never reaches the running loop.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}
