package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDomainImportForbidden(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"assetcore/pkg/domain", true},
		{"example.com/mod/pkg/domain@v1.2.3/sub", true},
		{"assetcore/pkg/domainx", false},
		{"assetcore/internal/core", false},
	}
	for _, tc := range cases {
		if got := DomainImportForbidden(tc.path); got != tc.want {
			t.Errorf("DomainImportForbidden(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestInfraPersistenceImportForbidden(t *testing.T) {
	if !InfraPersistenceImportForbidden("assetcore/internal/infra/persistence/sqlite") {
		t.Error("sqlite backend import should be forbidden")
	}
	if InfraPersistenceImportForbidden("assetcore/internal/core") {
		t.Error("core import should be allowed")
	}
}

func TestTransitiveDependencyViolationsParsesGoList(t *testing.T) {
	orig := goListDeps
	defer func() { goListDeps = orig }()
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nassetcore/pkg/domain\nassetcore/internal/infra/persistence/sqlite\n"), nil
	}

	viols, _, err := transitiveDependencyViolations("./...", InfraPersistenceImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "assetcore/internal/infra/persistence/sqlite" {
		t.Fatalf("viols = %+v", viols)
	}
}

func TestDirectImportViolationsScansNonTestFiles(t *testing.T) {
	dir := t.TempDir()
	src := `package sample

import (
	"fmt"

	"assetcore/pkg/domain"
)

var _ = fmt.Sprint(domain.EntityAsset)
`
	if err := os.WriteFile(filepath.Join(dir, "sample.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	testSrc := `package sample

import "assetcore/internal/infra/persistence/sqlite"

var _ = sqlite.NewStore
`
	if err := os.WriteFile(filepath.Join(dir, "sample_test.go"), []byte(testSrc), 0o644); err != nil {
		t.Fatalf("write test sample: %v", err)
	}

	viols, err := directImportViolations(dir, DomainImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 1 || viols[0] != "assetcore/pkg/domain (in sample.go)" {
		t.Fatalf("viols = %+v", viols)
	}

	// Test files are exempt from the scan.
	viols, err = directImportViolations(dir, InfraPersistenceImportForbidden)
	if err != nil {
		t.Fatalf("violations: %v", err)
	}
	if len(viols) != 0 {
		t.Fatalf("expected no violations from _test.go files, got %+v", viols)
	}
}
