package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	docconv "github.com/alnah/go-docconv"
)

// ErrNoInput is returned when no document was given or found.
var ErrNoInput = errors.New("no input specified")

// FileToConvert represents a single file to process.
type FileToConvert struct {
	InputPath  string
	OutputPath string
}

// discoverAll expands every input and rejects two inputs sharing an output.
func discoverAll(inputs []string, outputDir string) ([]FileToConvert, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}

	var files []FileToConvert
	owner := make(map[string]string)
	for _, in := range inputs {
		found, err := discoverFiles(in, outputDir)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if prev, ok := owner[f.OutputPath]; ok {
				return nil, fmt.Errorf("%w: %s and %s both write %s", ErrUsage, prev, f.InputPath, f.OutputPath)
			}
			owner[f.OutputPath] = f.InputPath
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no supported documents in %s", ErrNoInput, strings.Join(inputs, ", "))
	}
	return files, nil
}

// discoverFiles finds the documents to convert under inputPath. A file is
// taken whatever its extension so the converter can report on it; a
// directory contributes only files with a supported extension.
func discoverFiles(inputPath, outputDir string) ([]FileToConvert, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		outPath := resolveOutputPath(inputPath, outputDir, "")
		return []FileToConvert{{InputPath: inputPath, OutputPath: outPath}}, nil
	}

	var files []FileToConvert
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanning %s: %w", path, err)
		}
		if d.IsDir() || !isSupported(path) {
			return nil
		}
		outPath := resolveOutputPath(path, outputDir, inputPath)
		files = append(files, FileToConvert{InputPath: path, OutputPath: outPath})
		return nil
	})

	return files, err
}

func isSupported(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return slices.Contains(docconv.SupportedFormats, ext)
}

// resolveOutputPath determines the PDF output path for an input file.
// Under a directory input the relative layout is mirrored in outputDir.
func resolveOutputPath(inputPath, outputDir, baseInputDir string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(filepath.Base(inputPath), ext)

	if outputDir == "" {
		return filepath.Join(filepath.Dir(inputPath), base+".pdf")
	}

	if baseInputDir != "" {
		relPath, err := filepath.Rel(baseInputDir, inputPath)
		if err == nil {
			relDir := filepath.Dir(relPath)
			return filepath.Join(outputDir, relDir, base+".pdf")
		}
	}

	return filepath.Join(outputDir, base+".pdf")
}
