package batch

import (
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions are picked up from directories when no include pattern
// is given.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Discover expands args into image paths. Directories are walked (one level
// unless recursive); plain paths are kept as given, even when they do not
// exist, so the decoder reports them per file.
func Discover(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			if !matchesAnyPattern(arg, excludePatterns) &&
				(len(includePatterns) == 0 || matchesAnyPattern(arg, includePatterns)) {
				imageFiles = append(imageFiles, arg)
			}
			continue
		}

		files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
		if err != nil {
			return nil, err
		}
		imageFiles = append(imageFiles, files...)
	}

	return imageFiles, nil
}

func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.WalkDir(dir, walkFn)
}

// shouldIncludeFile applies exclude patterns first; without include
// patterns only known image extensions pass.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return imageExtensions[strings.ToLower(filepath.Ext(path))]
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
