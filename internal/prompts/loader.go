// Package prompts holds the LLM prompt templates embedded in the binary.
// Each *.json file maps prompt keys to text/template sources.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed *.json
var files embed.FS

// templates maps "file/key" to its parsed template.
var (
	loadOnce  sync.Once
	templates map[string]*template.Template
	loadErr   error
)

func load() (map[string]*template.Template, error) {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		names, err := fs.Glob(files, "*.json")
		if err != nil {
			loadErr = err
			return
		}
		for _, name := range names {
			data, err := files.ReadFile(name)
			if err != nil {
				loadErr = fmt.Errorf("failed to read prompt file %s: %w", name, err)
				return
			}
			var sources map[string]string
			if err := json.Unmarshal(data, &sources); err != nil {
				loadErr = fmt.Errorf("failed to parse prompt file %s: %w", name, err)
				return
			}
			for key, src := range sources {
				tmpl, err := template.New(key).Option("missingkey=error").Parse(src)
				if err != nil {
					loadErr = fmt.Errorf("failed to parse prompt %s in %s: %w", key, name, err)
					return
				}
				templates[name+"/"+key] = tmpl
			}
		}
	})
	return templates, loadErr
}

func lookup(file, key string) (*template.Template, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	tmpl, ok := all[file+"/"+key]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found in %s", key, file)
	}
	return tmpl, nil
}

// Execute renders the prompt stored under key in file. Every {{.Field}} the
// template references must be present in data.
func Execute(file, key string, data map[string]string) (string, error) {
	tmpl, err := lookup(file, key)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", key, err)
	}
	return sb.String(), nil
}

// Keys lists the prompt keys of file in sorted order.
func Keys(file string) ([]string, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	prefix := file + "/"
	var keys []string
	for name := range all {
		if key, ok := strings.CutPrefix(name, prefix); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
