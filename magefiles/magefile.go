//go:build mage

// Package main provides build targets for the pantry project using Mage.
//
// Usage:
//
//	mage build       Compile the pantry binary to bin/
//	mage test        Run all tests
//	mage testRace    Run all tests with the race detector
//	mage testRedis   Run tests including the live Redis backend tests
//	mage lint        Run golangci-lint
//	mage clean       Remove build artifacts
//	mage install     Install pantry to GOPATH/bin
//	mage stats       Print Go line counts per package
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "pantry"
	binaryDir  = "bin"
	cmdDir     = "./cmd/pantry"

	envRedisAddr     = "PANTRY_TEST_REDIS_ADDR"
	defaultRedisAddr = "localhost:6379"
)

// ldflags stamps the binary with the version from PANTRY_VERSION, or the
// output of git describe when that is unset.
func ldflags() string {
	v := os.Getenv("PANTRY_VERSION")
	if v == "" {
		out, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
		if err != nil {
			return ""
		}
		v = out
	}
	return "-X main.version=" + strings.TrimSpace(v)
}

// Build compiles the pantry binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if f := ldflags(); f != "" {
		args = append(args, "-ldflags", f)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Test runs all tests. Redis backend tests skip themselves unless
// PANTRY_TEST_REDIS_ADDR is set.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// TestRace runs all tests with the race detector.
func TestRace() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// TestRedis runs the Redis backend tests against PANTRY_TEST_REDIS_ADDR,
// defaulting to a server on localhost.
func TestRedis() error {
	addr := os.Getenv(envRedisAddr)
	if addr == "" {
		addr = defaultRedisAddr
	}
	env := map[string]string{envRedisAddr: addr}
	return sh.RunWithV(env, binGo, "test", "-count=1", "./internal/redis/...", "./pkg/backend/...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints production and test line counts for each Go package.
func Stats() error {
	type counts struct{ prod, test int }
	byDir := map[string]*counts{}

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		n, err := countLines(path)
		if err != nil {
			return nil
		}
		dir := filepath.Dir(path)
		c, ok := byDir[dir]
		if !ok {
			c = &counts{}
			byDir[dir] = c
		}
		if strings.HasSuffix(path, "_test.go") {
			c.test += n
		} else {
			c.prod += n
		}
		return nil
	})
	if err != nil {
		return err
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var prod, test int
	fmt.Printf("%-24s %8s %8s\n", "package", "prod", "test")
	for _, d := range dirs {
		c := byDir[d]
		prod += c.prod
		test += c.test
		fmt.Printf("%-24s %8d %8d\n", d, c.prod, c.test)
	}
	fmt.Printf("%-24s %8d %8d\n", "total", prod, test)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}
