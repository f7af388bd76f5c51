package build

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// Classpath returns the Java classpath of an installation at home: its config
// directory, every jar below home, then the CLASSPATH entries assigned in
// config/env.sh. A missing env.sh contributes nothing.
func Classpath(home string) ([]string, error) {
	cp := []string{filepath.Join(home, "config")}

	err := filepath.WalkDir(home, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(p) == ".jar" {
			cp = append(cp, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for jars: %w", home, err)
	}

	envPath := filepath.Join(home, "config", "env.sh")
	f, err := os.Open(envPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cp, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := envClasspath(f, envPath, home)
	if err != nil {
		return nil, err
	}
	return append(cp, entries...), nil
}

// envClasspath evaluates the CLASSPATH assignments of a shell script in
// order, with DITA_HOME set to home. Nothing is executed.
func envClasspath(r io.Reader, name, home string) ([]string, error) {
	file, err := syntax.NewParser().Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	classpath := ""
	cfg := &expand.Config{
		Env: expand.FuncEnviron(func(v string) string {
			switch v {
			case "DITA_HOME":
				return home
			case "CLASSPATH":
				return classpath
			}
			return ""
		}),
	}

	var walkErr error
	syntax.Walk(file, func(node syntax.Node) bool {
		as, ok := node.(*syntax.Assign)
		if !ok || walkErr != nil {
			return walkErr == nil
		}
		if as.Name == nil || as.Name.Value != "CLASSPATH" || as.Naked || as.Value == nil {
			return true
		}
		value, err := expand.Literal(cfg, as.Value)
		if err != nil {
			walkErr = fmt.Errorf("failed to expand CLASSPATH in %s: %w", name, err)
			return false
		}
		if as.Append {
			value = classpath + value
		}
		classpath = value
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	var entries []string
	for _, e := range strings.Split(classpath, ":") {
		if e == "" {
			continue
		}
		if !filepath.IsAbs(e) {
			e = filepath.Join(home, e)
		}
		entries = append(entries, filepath.Clean(e))
	}
	return entries, nil
}
