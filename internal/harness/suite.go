package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path does not exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files at path: the file itself, or
// every .yaml and .yml file under a directory in lexical order.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
	Results  []ScenarioResult  `json:"results"`
}

// ScenarioResult is the result of one scenario file.
type ScenarioResult struct {
	Path   string  `json:"path"`
	Name   string  `json:"name"`
	Result *Result `json:"result,omitempty"`
}

// ScenarioFailure is a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Path  string `json:"path"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool {
	return r.Failed == 0
}

// RunSuite loads and runs every scenario at path. Load and execution
// errors are recorded as failures; the error return is for an unusable
// path only.
func RunSuite(ctx context.Context, path string) (*SuiteResult, error) {
	files, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}
	return RunFiles(ctx, files), nil
}

// RunFiles loads and runs the given scenario files in order.
func RunFiles(ctx context.Context, files []string) *SuiteResult {
	result := &SuiteResult{Results: []ScenarioResult{}}
	for _, file := range files {
		result.Total++

		scenario, err := LoadScenario(file)
		if err != nil {
			result.fail(ScenarioFailure{Path: file, Error: fmt.Sprintf("failed to load scenario: %v", err)})
			continue
		}
		run, err := RunContext(ctx, scenario)
		if err != nil {
			result.fail(ScenarioFailure{Path: file, Name: scenario.Name, Error: fmt.Sprintf("scenario execution failed: %v", err)})
			continue
		}
		result.Results = append(result.Results, ScenarioResult{Path: file, Name: scenario.Name, Result: run})
		if !run.Pass {
			result.fail(ScenarioFailure{Path: file, Name: scenario.Name, Error: fmt.Sprintf("scenario assertions failed: %v", run.Errors)})
			continue
		}
		result.Passed++
	}
	return result
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
