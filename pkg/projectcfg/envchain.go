package projectcfg

import (
	"os"
	"strings"

	"github.com/germanamz/nbdesk/pkg/projectdir"
)

// EnvironmentKey selects the environment specific env file (.env.<value>).
const EnvironmentKey = "ENVIRONMENT"

// EnvLookup describes where an env key was resolved.
type EnvLookup struct {
	// Project is the directory holding the base .env file.
	Project projectdir.Dir
	// Path is the file that defines the key, or the file a new definition
	// should go to when Found is false.
	Path string
	// Value is the resolved value.
	Value string
	// Found reports whether any file in the chain defines the key.
	Found bool
}

// FindEnvProject walks upward from dir to the first directory containing a
// .env file.
func FindEnvProject(dir string) (projectdir.Dir, error) {
	p, ok := projectdir.FindUp(dir, projectdir.EnvName)
	if !ok {
		return projectdir.Dir{}, notFound(projectdir.EnvName, dir)
	}

	return p, nil
}

// envChain returns the files consulted for a project, lowest precedence
// first: .env, then .env.<ENVIRONMENT> when that file exists.
func envChain(p projectdir.Dir) ([]string, error) {
	base, err := ReadEnvFile(p.EnvPath())
	if err != nil {
		return nil, err
	}

	chain := []string{p.EnvPath()}

	if env, ok := base.Get(EnvironmentKey); ok && strings.TrimSpace(env) != "" {
		path := p.EnvFilePath(strings.TrimSpace(env))
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			chain = append(chain, path)
		}
	}

	return chain, nil
}

// FindEnvKey resolves key for the project at or above dir. Later files in
// the chain override earlier ones. When the key is not defined anywhere,
// Path names the file a new definition belongs in: the environment specific
// file if there is one, else .env.
func FindEnvKey(dir, key string) (EnvLookup, error) {
	p, err := FindEnvProject(dir)
	if err != nil {
		return EnvLookup{}, err
	}

	chain, err := envChain(p)
	if err != nil {
		return EnvLookup{}, err
	}

	res := EnvLookup{Project: p, Path: chain[len(chain)-1]}
	for _, path := range chain {
		doc, err := ReadEnvFile(path)
		if err != nil {
			return EnvLookup{}, err
		}
		if v, ok := doc.Get(key); ok {
			res.Path = path
			res.Value = v
			res.Found = true
		}
	}

	return res, nil
}

// UpdateEnvKey rewrites key in the file that currently wins the lookup,
// preserving every other line of that file.
func (a *Accessor) UpdateEnvKey(dir, key, value string) error {
	return a.UpdateEnvKeyFunc(dir, key, func(string) string { return value })
}

// UpdateEnvKeyFunc replaces the value of key with fn(old) in the file that
// currently wins the lookup. The file is re-read under its lock so fn always
// sees the latest value.
func (a *Accessor) UpdateEnvKeyFunc(dir, key string, fn func(old string) string) error {
	lookup, err := FindEnvKey(dir, key)
	if err != nil {
		return err
	}

	return a.locker.With(lookup.Path, func() error {
		doc, err := ReadEnvFile(lookup.Path)
		if err != nil {
			return err
		}

		old, ok := doc.Get(key)
		if !ok {
			old = lookup.Value
		}

		doc.Set(key, fn(old))

		if err := WriteFileAtomic(lookup.Path, doc.Bytes()); err != nil {
			return err
		}

		a.log.Info("env key updated", "path", lookup.Path, "key", key)

		return nil
	})
}
