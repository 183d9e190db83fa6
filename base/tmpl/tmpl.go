// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tmpl runs the text templates of loopgen reports.
package tmpl

import (
	"strings"
	"text/template"

	lgfmt "github.com/loopgen/loopgen/base/fmt"
	"github.com/pkg/errors"
)

// Funcs available to every template.
var Funcs = template.FuncMap{
	"indent": lgfmt.Indent,
	"number": lgfmt.Number,
	"join":   strings.Join,
}

// New parses a template with Funcs.
func New(name, text string) (*template.Template, error) {
	t, err := template.New(name).Funcs(Funcs).Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse template %s", name)
	}
	return t, nil
}

// Execute runs a template on data and returns the output.
func Execute(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Errorf("cannot execute template %s: %v", t.Name(), err)
	}
	return buf.String(), nil
}

// IterateTmpl runs a template over a slice of objects.
// The outputs are joined by a new line.
func IterateTmpl[T any](objs []T, t *template.Template) (string, error) {
	ss := make([]string, len(objs))
	for i, obj := range objs {
		s, err := Execute(t, obj)
		if err != nil {
			return "", err
		}
		ss[i] = s
	}
	return strings.Join(ss, "\n"), nil
}
