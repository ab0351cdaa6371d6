package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/flint/internal/compiler"
	"github.com/roach88/flint/internal/harness"
	"github.com/roach88/flint/internal/spec"
)

// Issue is one problem found while loading, compiling or planning tests.
type Issue struct {
	File    string `json:"file,omitempty"`
	Test    string `json:"test,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	msg := i.Message
	if !strings.HasPrefix(msg, i.Code) {
		msg = i.Code + ": " + msg
	}
	where := i.File
	if where == "" {
		where = i.Test
	}
	if where == "" {
		return msg
	}
	return where + ": " + msg
}

// FindTestFiles returns the test files at root in discovery order. root
// may be a single file. Directories are scanned one level deep unless
// recursive is set; paths are sorted lexically.
func FindTestFiles(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if !spec.SupportedFile(root) {
			return nil, fmt.Errorf("unsupported test file %s (want one of %v)", root, spec.Extensions)
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if spec.SupportedFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadTests loads every file, collecting all problems instead of stopping
// at the first. Specs that loaded are returned in file order.
func LoadTests(files []string) ([]*spec.TestSpec, []Issue) {
	var (
		tests  []*spec.TestSpec
		issues []Issue
	)
	for _, f := range files {
		t, err := spec.Load(f)
		if err != nil {
			issues = append(issues, loadIssues(f, err)...)
			continue
		}
		tests = append(tests, t)
	}
	return tests, issues
}

// loadIssues flattens a load error; validation failures become one issue
// per violated rule, carrying its E2xx code.
func loadIssues(file string, err error) []Issue {
	var le *spec.LoadError
	if errors.As(err, &le) && le.Stage == spec.StageValidate {
		var verrs spec.ValidationErrors
		if errors.As(le.Err, &verrs) {
			issues := make([]Issue, len(verrs))
			for i, ve := range verrs {
				issues[i] = Issue{File: file, Code: ve.Code, Message: ve.Field + ": " + ve.Message}
			}
			return issues
		}
	}
	return []Issue{{File: file, Code: ErrCodeLoadFailed, Message: err.Error()}}
}

// CompileIssues compiles every test and reports each failure.
func CompileIssues(tests []*spec.TestSpec) []Issue {
	var issues []Issue
	for _, t := range tests {
		if _, err := compiler.Compile(t); err != nil {
			issues = append(issues, issueFor(t.Source, t.Name, err))
		}
	}
	return issues
}

// issueFor maps compile and plan errors to an Issue carrying their code.
func issueFor(file, test string, err error) Issue {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return Issue{File: file, Test: test, Code: string(ce.Code), Message: err.Error()}
	}
	var pe *harness.PlanError
	if errors.As(err, &pe) {
		return Issue{File: file, Test: pe.Test, Code: string(pe.Code), Message: err.Error()}
	}
	return Issue{File: file, Test: test, Code: ErrCodeGeneric, Message: err.Error()}
}

// discover finds test files and reports scan problems through f.
func discover(f *OutputFormatter, path string, recursive bool) ([]string, error) {
	files, err := FindTestFiles(path, recursive)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", path), nil)
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeScanError, "error scanning for tests", err)
	}
	if len(files) == 0 {
		return nil, f.Fail(ExitCommandError, ErrCodeNoFiles, fmt.Sprintf("no test files found in %s", path), nil)
	}
	f.VerboseLog("Found %d test file(s) in %s", len(files), path)
	return files, nil
}

// loadAll discovers and loads tests, failing the command on any problem.
func loadAll(f *OutputFormatter, path string, recursive bool) ([]*spec.TestSpec, error) {
	files, err := discover(f, path, recursive)
	if err != nil {
		return nil, err
	}
	tests, issues := LoadTests(files)
	if len(issues) > 0 {
		return nil, reportIssues(f, ExitCommandError, ErrCodeLoadFailed, "failed to load tests", issues)
	}
	return tests, nil
}

// reportIssues prints issues and returns an ExitError with exit.
func reportIssues(f *OutputFormatter, exit int, code, message string, issues []Issue) error {
	if f.JSON() {
		_ = f.encode(CLIResponse{
			Status: "error",
			Data:   map[string]any{"issues": issues},
			Error:  &CLIError{Code: code, Message: fmt.Sprintf("%s: %d problem(s)", message, len(issues))},
		})
	} else {
		fmt.Fprintf(f.Writer, "✗ %s\n\n", message)
		for _, i := range issues {
			fmt.Fprintf(f.Writer, "  %s\n", i)
		}
	}
	return &ExitError{Code: exit, Message: fmt.Sprintf("%s: %d problem(s)", message, len(issues)), reported: true}
}
