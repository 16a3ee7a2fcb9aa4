package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Golden file states of a Verdict.
const (
	GoldenAbsent   = "absent"
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// Verdict is the outcome of checking one scenario file.
type Verdict struct {
	File     string   `json:"file"`
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Golden   string   `json:"golden"`
	Problems []string `json:"problems,omitempty"`
}

func (v Verdict) fail(format string, args ...any) Verdict {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
	v.Pass = false
	return v
}

// Suite is the outcome of checking a directory of scenario files.
type Suite struct {
	Verdicts []Verdict `json:"verdicts"`
	Passed   int       `json:"passed"`
	Failed   int       `json:"failed"`
}

// SuiteConfig selects and updates scenario files.
type SuiteConfig struct {
	// Pattern is a filepath.Match glob over file names without extension.
	// Empty selects every file.
	Pattern string

	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// Discover lists the .yaml and .yml files under dir in lexical order.
// Directories named "golden" hold snapshots and are not descended into.
func Discover(dir, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter pattern %q: %w", pattern, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if pattern != "" {
			if ok, _ := filepath.Match(pattern, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GoldenPath is the snapshot location of a scenario file:
// golden/<name>.golden in the file's directory.
func GoldenPath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(file), "golden", name+".golden")
}

// Check runs one scenario file. Its snapshot must equal the golden file
// when one exists; with update the golden file is written instead.
func Check(ctx context.Context, file string, update bool, opts ...Option) Verdict {
	v := Verdict{
		File:     file,
		Scenario: strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		Golden:   GoldenAbsent,
	}

	scenario, err := LoadScenario(file)
	if err != nil {
		return v.fail("load: %v", err)
	}
	v.Scenario = scenario.Name

	result, err := Run(ctx, scenario, opts...)
	if err != nil {
		return v.fail("run: %v", err)
	}
	v.Problems = append(v.Problems, result.Errors...)

	snapshot, err := Snapshot(scenario.Name, result)
	if err != nil {
		return v.fail("snapshot: %v", err)
	}

	path := GoldenPath(file)
	if update {
		if err := writeGolden(path, snapshot); err != nil {
			return v.fail("%v", err)
		}
		v.Golden = GoldenUpdated
	} else {
		golden, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return v.fail("read golden file: %v", err)
		case bytes.Equal(golden, snapshot):
			v.Golden = GoldenMatch
		default:
			v.Golden = GoldenMismatch
			v.Problems = append(v.Problems, "documents do not match golden file "+path)
		}
	}

	v.Pass = len(v.Problems) == 0
	return v
}

func writeGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	if err := os.WriteFile(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// RunSuite checks every scenario file under dir that cfg selects.
// Scenario failures are reported in the suite; a returned error means the
// directory could not be read or ctx was cancelled.
func RunSuite(ctx context.Context, dir string, cfg SuiteConfig, opts ...Option) (*Suite, error) {
	files, err := Discover(dir, cfg.Pattern)
	if err != nil {
		return nil, err
	}

	suite := &Suite{Verdicts: make([]Verdict, 0, len(files))}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := Check(ctx, file, cfg.Update, opts...)
		if v.Pass {
			suite.Passed++
		} else {
			suite.Failed++
		}
		suite.Verdicts = append(suite.Verdicts, v)
	}
	return suite, nil
}
