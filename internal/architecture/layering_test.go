package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const modulesPrefix = "timetrack/internal/modules/"

type importRef struct {
	file string
	path string
}

func collectImports(t *testing.T, root string) []importRef {
	t.Helper()
	fset := token.NewFileSet()
	var refs []importRef
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		for _, imp := range node.Imports {
			refs = append(refs, importRef{file: filepath.ToSlash(path), path: strings.Trim(imp.Path.Value, `"`)})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return refs
}

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "modules")) {
		if !strings.HasPrefix(ref.path, modulesPrefix) {
			continue
		}
		layer := detectLayer(ref.file)
		if layer == "" {
			continue
		}
		if violatesLayerRule(moduleName(ref.file), layer, ref.path) {
			t.Errorf("forbidden import in %s (%s): %s", ref.file, layer, ref.path)
		}
	}
}

// The terminal view talks to sessions through CLI handler shaped ports and
// only shares DTOs with the modules.
func TestUIImportsOnlyDTOs(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "ui")) {
		if strings.HasPrefix(ref.path, modulesPrefix) && !isDTO(ref.path) {
			t.Errorf("ui file %s imports %s", ref.file, ref.path)
		}
	}
}

func TestPlatformDoesNotImportModules(t *testing.T) {
	t.Parallel()
	for _, ref := range collectImports(t, filepath.Join("..", "platform")) {
		if strings.HasPrefix(ref.path, modulesPrefix) || strings.Contains(ref.path, "timetrack/internal/ui") {
			t.Errorf("platform file %s imports %s", ref.file, ref.path)
		}
	}
}

func moduleName(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" {
			return parts[i+1]
		}
	}
	return ""
}

func detectLayer(path string) string {
	for _, layer := range []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"} {
		if strings.Contains(path, "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func isPortIn(path string) bool {
	return strings.Contains(path, "/port/in/") || strings.HasSuffix(path, "/port/in")
}

func isDTO(path string) bool {
	return strings.Contains(path, "/dto/") || strings.HasSuffix(path, "/dto")
}

func isDomain(path string) bool {
	return strings.HasSuffix(path, "/domain")
}

func violatesLayerRule(module, layer, importPath string) bool {
	if module == "" {
		return false
	}
	if !strings.HasPrefix(importPath, modulesPrefix+module+"/") {
		return !isPortIn(importPath) && !isDTO(importPath)
	}

	switch layer {
	case "adapter/in":
		return !isPortIn(importPath) && !isDTO(importPath)
	case "usecase":
		return strings.Contains(importPath, "/adapter/")
	case "service":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase/") || isPortIn(importPath)
	case "port/out":
		return !isDomain(importPath)
	case "domain", "dto":
		return true
	default:
		return false
	}
}
