// Package framework classifies the test framework installed in a
// JavaScript/TypeScript workspace.
package framework

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Framework is a member of the closed set of supported test frameworks.
type Framework string

const (
	Jest       Framework = "jest"
	Vitest     Framework = "vitest"
	Playwright Framework = "playwright"
	Unknown    Framework = "unknown"
)

// Parse maps s onto the closed set. Anything unrecognised is Unknown.
func Parse(s string) Framework {
	switch f := Framework(s); f {
	case Jest, Vitest, Playwright:
		return f
	default:
		return Unknown
	}
}

// String implements fmt.Stringer.
func (f Framework) String() string { return string(f) }

// Runnable reports whether generated tests for f can be executed locally.
func (f Framework) Runnable() bool {
	return f == Jest || f == Vitest
}

// ImportLine returns the framework's boilerplate import statement, or "" for
// frameworks without one.
func (f Framework) ImportLine() string {
	switch f {
	case Vitest:
		return `import { describe, it, expect, vi } from "vitest";`
	case Jest:
		return `import { describe, it, expect, jest } from "@jest/globals";`
	case Playwright:
		return `import { test, expect } from "@playwright/test";`
	default:
		return ""
	}
}

// Modules lists the import specifiers owned by test frameworks.
var Modules = []string{"vitest", "@jest/globals", "@playwright/test"}

type evidence struct {
	framework Framework
	packages  []string
	configs   []string
}

// Dependency evidence is checked in this order, then config-file evidence in
// the order jest, vitest, playwright.
var (
	dependencyOrder = []evidence{
		{framework: Vitest, packages: []string{"vitest"}},
		{framework: Jest, packages: []string{"jest", "@jest/globals"}},
		{framework: Playwright, packages: []string{"playwright", "@playwright/test"}},
	}
	configOrder = []evidence{
		{framework: Jest, configs: []string{"jest.config.js", "jest.config.ts", "jest.config.cjs", "jest.config.mjs"}},
		{framework: Vitest, configs: []string{"vitest.config.ts", "vitest.config.js", "vite.config.ts", "vite.config.js"}},
		{framework: Playwright, configs: []string{"playwright.config.ts", "playwright.config.js", "playwright.config.mjs", "playwright.config.cjs"}},
	}
)

type manifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func (m manifest) has(name string) bool {
	_, dep := m.Dependencies[name]
	_, dev := m.DevDependencies[name]
	return dep || dev
}

// Detect inspects workspace and returns the framework it uses. A missing or
// malformed package.json is treated as carrying no dependency evidence.
func Detect(workspace string) Framework {
	m := readManifest(filepath.Join(workspace, "package.json"))
	for _, ev := range dependencyOrder {
		for _, pkg := range ev.packages {
			if m.has(pkg) {
				return ev.framework
			}
		}
	}

	for _, ev := range configOrder {
		for _, name := range ev.configs {
			if _, err := os.Stat(filepath.Join(workspace, name)); err == nil {
				return ev.framework
			}
		}
	}

	return Unknown
}

func readManifest(path string) manifest {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}
	}
	return m
}
