package index

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tandemrev/tandemrev/model"
)

// PreflightToolName is the tool every reviewer must call before any other.
const PreflightToolName = "activate_project"

// maxSearchFileBytes guards the search walk against scanning huge blobs.
const maxSearchFileBytes = 1_000_000

// maxReadFileBytes is the largest file read_file loads whole. Larger files
// must be sliced with head/tail.
const maxReadFileBytes = 1_000_000

// Limits bounds tool output volume. Character ceilings are enforced by the
// caller; these bound entry and match counts.
type Limits struct {
	MaxDirEntries    int
	MaxSearchResults int
}

// Usage records which capabilities an invocation exercised, for disclosure.
type Usage struct {
	ActivatedProject string
	Tools            []string
	Memories         []string
	Paths            []string
}

// Bridge serves read-only project context from a repository root that carries
// a .serena/ directory. A Bridge tracks per-invocation state (activation and
// usage) and must not be shared across invocations.
type Bridge struct {
	root        string
	memoriesDir string
	limits      Limits

	mu        sync.Mutex
	activated string
	tools     map[string]struct{}
	memories  map[string]struct{}
	paths     map[string]struct{}
}

// Detect returns a Bridge when root contains a .serena/ directory, or nil
// when the repository has no project index. Dangerous roots are rejected.
func Detect(root string, limits Limits) (*Bridge, error) {
	resolved, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	if IsDangerousRoot(resolved) {
		return nil, fmt.Errorf("refusing to serve project context from %s", resolved)
	}
	indexDir := filepath.Join(resolved, ".serena")
	if info, err := os.Stat(indexDir); err != nil || !info.IsDir() {
		return nil, nil
	}
	return &Bridge{
		root:        resolved,
		memoriesDir: filepath.Join(indexDir, "memories"),
		limits:      limits,
		tools:       make(map[string]struct{}),
		memories:    make(map[string]struct{}),
		paths:       make(map[string]struct{}),
	}, nil
}

// Root returns the repository root the bridge serves.
func (b *Bridge) Root() string { return b.root }

// PreflightTool returns the name of the mandatory activation tool.
func (b *Bridge) PreflightTool() string { return PreflightToolName }

// Activated reports whether the preflight activation has happened.
func (b *Bridge) Activated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activated != ""
}

// Usage returns a snapshot of everything the invocation touched, with the
// tool, memory, and path sets sorted for stable disclosure output.
func (b *Bridge) Usage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Usage{
		ActivatedProject: b.activated,
		Tools:            sortedKeys(b.tools),
		Memories:         sortedKeys(b.memories),
		Paths:            sortedKeys(b.paths),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Definitions returns the tool schemas to advertise to reviewer models.
func (b *Bridge) Definitions() []model.ToolDefinition {
	return []model.ToolDefinition{
		{
			Name:        PreflightToolName,
			Description: "Activate the current project (required preflight). Call with project='.' to activate the repo root.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project": map[string]any{
						"type":        "string",
						"description": "Must be '.' or the absolute path to the repo root.",
					},
				},
				"required": []string{"project"},
			},
		},
		{
			Name:        "list_memories",
			Description: "List available project memories (from .serena/memories).",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
		{
			Name:        "read_project_overview",
			Description: "Read the project overview memory (.serena/memories/project_overview.md) if present.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
		{
			Name:        "read_memory",
			Description: "Read a project memory file by name (no path traversal).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Memory name (with or without .md).",
					},
				},
				"required": []string{"name"},
			},
		},
		{
			Name:        "list_dir",
			Description: "List files/directories under a repo-relative path (read-only).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Repo-relative path. Use '.' for repo root.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "read_file",
			Description: "Read a text file under the repo root (read-only).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Repo-relative file path.",
					},
					"head": map[string]any{
						"type":        "integer",
						"description": "Optional: read only first N lines.",
					},
					"tail": map[string]any{
						"type":        "integer",
						"description": "Optional: read only last N lines.",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "search_for_pattern",
			Description: "Search repo files for a regex pattern (read-only, bounded result count).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pattern": map[string]any{
						"type":        "string",
						"description": "Regex pattern to search for.",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Optional repo-relative path to restrict search.",
					},
				},
				"required": []string{"pattern"},
			},
		},
		{
			Name:        "find_symbol",
			Description: "Best-effort symbol declaration lookup across repo files.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Symbol name to find (e.g. MyType, my_func).",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Optional repo-relative path to restrict search.",
					},
				},
				"required": []string{"name"},
			},
		},
	}
}

type toolArgs struct {
	Project string `json:"project"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
	Head    *int   `json:"head"`
	Tail    *int   `json:"tail"`
}

// Dispatch executes one tool call and returns its output as indented JSON.
// Every tool except activate_project requires a prior activation.
func (b *Bridge) Dispatch(ctx context.Context, name, argumentsJSON string) (string, error) {
	var args toolArgs
	if strings.TrimSpace(argumentsJSON) != "" {
		dec := json.NewDecoder(strings.NewReader(argumentsJSON))
		if err := dec.Decode(&args); err != nil {
			return "", fmt.Errorf("invalid tool arguments JSON: %w", err)
		}
	}

	if name != PreflightToolName && !b.Activated() {
		return "", fmt.Errorf("%s must be called first", PreflightToolName)
	}

	var (
		result any
		err    error
	)
	switch name {
	case PreflightToolName:
		result, err = b.activateProject(args.Project)
	case "list_memories":
		result, err = b.listMemories()
	case "read_project_overview":
		result, err = b.readMemory("project_overview")
	case "read_memory":
		result, err = b.readMemory(args.Name)
	case "list_dir":
		result, err = b.listDir(args.Path)
	case "read_file":
		result, err = b.readFile(args.Path, args.Head, args.Tail)
	case "search_for_pattern":
		result, err = b.searchForPattern(ctx, args.Pattern, args.Path)
	case "find_symbol":
		result, err = b.findSymbol(ctx, args.Name, args.Path)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	b.tools[name] = struct{}{}
	b.mu.Unlock()

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(out), nil
}

func (b *Bridge) activateProject(project string) (any, error) {
	// Models sometimes call the preflight without arguments. Default to the
	// repo root rather than failing the whole invocation.
	if strings.TrimSpace(project) == "" {
		project = "."
	}
	if project != "." && filepath.Clean(project) != b.root {
		return nil, fmt.Errorf("only the current repo root can be activated")
	}
	b.mu.Lock()
	b.activated = project
	b.mu.Unlock()
	return map[string]any{
		"status":  "activated",
		"project": project,
		"note":    "Project activated. You may now use tools like list_memories/read_memory.",
	}, nil
}

func (b *Bridge) listMemories() (any, error) {
	entries, err := os.ReadDir(b.memoriesDir)
	if err != nil {
		return map[string]any{
			"memories": []string{},
			"note":     "No .serena/memories directory found.",
		}, nil
	}
	var memories []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			memories = append(memories, e.Name())
		}
	}
	sort.Strings(memories)
	if memories == nil {
		memories = []string{}
	}
	return map[string]any{"memories": memories}, nil
}

func (b *Bridge) readMemory(name string) (any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name must be a non-empty string")
	}
	filename := name
	if !strings.HasSuffix(filename, ".md") {
		filename += ".md"
	}
	if strings.Contains(filepath.ToSlash(filename), "/") || filename == ".." {
		return nil, fmt.Errorf("invalid memory name")
	}
	path := filepath.Join(b.memoriesDir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory not found")
	}
	b.mu.Lock()
	b.memories[filename] = struct{}{}
	b.mu.Unlock()
	return map[string]any{"name": filename, "content": string(content)}, nil
}

func (b *Bridge) listDir(path string) (any, error) {
	target := b.root
	if path != "." {
		resolved, err := resolveUnderRoot(b.root, path)
		if err != nil {
			return nil, err
		}
		target = resolved
	}
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("path not found")
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory")
	}

	children, err := os.ReadDir(target)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
	if b.limits.MaxDirEntries > 0 && len(children) > b.limits.MaxDirEntries {
		children = children[:b.limits.MaxDirEntries]
	}

	entries := make([]map[string]string, 0, len(children))
	for _, child := range children {
		kind := "file"
		if child.IsDir() {
			kind = "dir"
		}
		entries = append(entries, map[string]string{"name": child.Name(), "type": kind})
	}

	rel := b.relPath(target)
	b.trackPath(rel)
	return map[string]any{"path": rel, "entries": entries}, nil
}

func (b *Bridge) readFile(path string, head, tail *int) (any, error) {
	target, err := resolveUnderRoot(b.root, path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("path is not a file")
	}
	if head != nil && *head < 0 {
		return nil, fmt.Errorf("head must be >= 0")
	}
	if tail != nil && *tail < 0 {
		return nil, fmt.Errorf("tail must be >= 0")
	}

	var content string
	if info.Size() > maxReadFileBytes {
		if head == nil && tail == nil {
			return nil, fmt.Errorf("file is too large to read without head/tail")
		}
		content, err = sliceLargeFile(target, head, tail)
		if err != nil {
			return nil, err
		}
	} else {
		raw, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("read file: %w", err)
		}
		content = sliceLines(string(raw), head, tail)
	}

	rel := b.relPath(target)
	b.trackPath(rel)
	return map[string]any{"path": rel, "content": content}, nil
}

// sliceLines applies optional head/tail line windows to full file content.
func sliceLines(text string, head, tail *int) string {
	if head == nil && tail == nil {
		return text
	}
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	if head != nil {
		if *head < len(lines) {
			lines = lines[:*head]
		}
	}
	if tail != nil {
		if *tail == 0 {
			lines = nil
		} else if *tail < len(lines) {
			lines = lines[len(lines)-*tail:]
		}
	}
	return strings.Join(lines, "")
}

// sliceLargeFile streams head/tail windows out of a file too large to load.
func sliceLargeFile(path string, head, tail *int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	var headLines []string
	var tailRing []string
	tailN := 0
	if tail != nil {
		tailN = *tail
	}

	r := bufio.NewReader(f)
	lineNo := 0
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lineNo++
			if head != nil && lineNo <= *head {
				headLines = append(headLines, line)
			}
			if tailN > 0 {
				tailRing = append(tailRing, line)
				if len(tailRing) > tailN {
					tailRing = tailRing[1:]
				}
			}
		}
		if err != nil {
			break
		}
	}

	var sb strings.Builder
	for _, l := range headLines {
		sb.WriteString(l)
	}
	if tailN > 0 {
		if head != nil {
			sb.WriteString("\n[NOTE: Middle of file omitted due to size.]\n")
		}
		for _, l := range tailRing {
			sb.WriteString(l)
		}
	}
	return sb.String(), nil
}

// searchDirExclusions are directory names skipped during the search walk.
var searchDirExclusions = map[string]struct{}{
	".git":         {},
	".venv":        {},
	"__pycache__":  {},
	"node_modules": {},
	"vendor":       {},
}

func (b *Bridge) searchForPattern(ctx context.Context, pattern, path string) (any, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("pattern must be a non-empty string")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	restrict := b.root
	if strings.TrimSpace(path) != "" && path != "." {
		resolved, err := resolveUnderRoot(b.root, path)
		if err != nil {
			return nil, err
		}
		if info, statErr := os.Stat(resolved); statErr == nil && !info.IsDir() {
			resolved = filepath.Dir(resolved)
		}
		restrict = resolved
	}

	matches, walkErr := b.walkAndMatch(ctx, restrict, re)
	if walkErr != nil {
		return nil, walkErr
	}
	if matches == nil {
		matches = []string{}
	}
	return map[string]any{"matches": matches}, nil
}

func (b *Bridge) walkAndMatch(ctx context.Context, dir string, re *regexp.Regexp) ([]string, error) {
	var matches []string
	max := b.limits.MaxSearchResults

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if max > 0 && len(matches) >= max {
			return filepath.SkipAll
		}
		name := d.Name()
		if d.IsDir() {
			if path != dir {
				if _, excluded := searchDirExclusions[name]; excluded || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileBytes {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if bytes.IndexByte(raw[:min(len(raw), 8192)], 0) >= 0 {
			return nil
		}

		rel := b.relPath(path)
		for i, line := range strings.Split(string(raw), "\n") {
			if max > 0 && len(matches) >= max {
				break
			}
			if re.MatchString(line) {
				if len(line) > 200 {
					line = line[:200]
				}
				matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, i+1, line))
				b.trackPath(rel)
			}
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return matches, fmt.Errorf("search aborted: %w", err)
	}
	return matches, nil
}

func (b *Bridge) findSymbol(ctx context.Context, name, path string) (any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name must be a non-empty string")
	}
	// Declaration keywords across the languages reviews commonly touch.
	pattern := fmt.Sprintf(`^\s*(?:func(?:\s+\([^)]+\))?|type|def|class|interface|struct|function)\s+%s\b`, regexp.QuoteMeta(name))
	return b.searchForPattern(ctx, pattern, path)
}

func (b *Bridge) relPath(target string) string {
	rel, err := filepath.Rel(b.root, target)
	if err != nil {
		return target
	}
	return rel
}

func (b *Bridge) trackPath(rel string) {
	b.mu.Lock()
	b.paths[rel] = struct{}{}
	b.mu.Unlock()
}
