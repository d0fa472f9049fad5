package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv(dsnEnv, "")
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderPrintsEncodedNames(t *testing.T) {
	out, err := run(t, "render", "--schema", filepath.Join("testdata", "acme.yaml"), "--tab", "general")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `"acme_general[site_name]"`) {
		t.Fatalf("expected encoded field name in output, got:\n%s", out)
	}
}

func TestRenderUnknownTab(t *testing.T) {
	if _, err := run(t, "render", "--schema", filepath.Join("testdata", "acme.yaml"), "--tab", "missing"); err == nil {
		t.Fatalf("expected error for unknown tab")
	}
}

func TestSaveWritesSanitizedValues(t *testing.T) {
	out, err := run(t, "save", "--schema", filepath.Join("testdata", "acme.yaml"),
		"--tab", "general", "--set", "acme_general[site_name]=<b>Hello</b>")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	var result struct {
		Records []struct {
			Name  string         `json:"name"`
			Value map[string]any `json:"value"`
		} `json:"records"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(result.Records) != 1 || result.Records[0].Name != "acme_general" {
		t.Fatalf("unexpected records %#v", result.Records)
	}
	if got := result.Records[0].Value["site_name"]; got != "Hello" {
		t.Fatalf("expected sanitized site name, got %#v", got)
	}
	if got := result.Records[0].Value["enabled"]; got != "no" {
		t.Fatalf("expected unchecked checkbox saved as no, got %#v", got)
	}
}

func TestSchemaYAMLOutput(t *testing.T) {
	out, err := run(t, "schema", "--schema", filepath.Join("testdata", "acme.yaml"), "--output", "yaml")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if !strings.Contains(out, "acme_mail_smtp") {
		t.Fatalf("expected smtp record in schema, got:\n%s", out)
	}
}

func TestParseAssignments(t *testing.T) {
	form, err := parseAssignments([]string{"a[b]=1", "a[c][]=x", "a[c][]=y"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if form.Get("a[b]") != "1" || len(form["a[c][]"]) != 2 {
		t.Fatalf("unexpected form %#v", form)
	}
	if _, err := parseAssignments([]string{"novalue"}); err == nil {
		t.Fatalf("expected error for assignment without '='")
	}
}

func TestMigrateRequiresDSN(t *testing.T) {
	if _, err := run(t, "migrate"); err == nil || !strings.Contains(err.Error(), dsnEnv) {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}
