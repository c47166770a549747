// Package config loads the installer definition (installer.yaml).
//
// The definition declares the models to provision, where every configuration
// artifact is written, the environment check list and the custom application
// parameters. Paths may reference ${project_dir}, which expands to the
// directory the installer was started for.
//
// # Usage
//
//	def, err := config.Load("installer.yaml", "/srv/app")
//	if err != nil {
//	    return err
//	}
//
// A Watcher reloads the definition when the file changes:
//
//	w := config.NewWatcher(logger)
//	err := w.Watch(ctx, path, projectDir, func(def *config.Definition) error {
//	    holder.Store(def)
//	    return nil
//	})
package config
