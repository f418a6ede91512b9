//go:build ignore

// build.go - rowmatch build system
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, rowmatch, rowmatch-server, test, release, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const versionPackage = "rowmatch/pkg/contracts"

var (
	distDir = "dist"

	// commands lists the cmd/ directories that produce binaries
	commands = []string{"rowmatch", "rowmatch-server"}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
)

// BuildContext holds configuration for the build process
type BuildContext struct {
	Verbose bool
	GOOS    string
	GOARCH  string
	Release bool
}

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	goos := flag.String("os", runtime.GOOS, "Target operating system")
	goarch := flag.String("arch", runtime.GOARCH, "Target architecture")
	flag.Parse()

	printHeader()
	startTime := time.Now()

	ctx := &BuildContext{Verbose: *verbose, GOOS: *goos, GOARCH: *goarch}

	switch *target {
	case "all":
		buildAll(ctx)
	case "rowmatch", "rowmatch-server":
		buildCommand(*target, ctx)
	case "test":
		runTests(ctx.Verbose)
	case "release":
		ctx.Release = true
		clean(ctx.Verbose)
		buildAll(ctx)
	case "clean":
		clean(ctx.Verbose)
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "          rowmatch - Build System          " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func printWarning(msg string) {
	fmt.Printf("%s[WARNING]%s %s\n", colorYellow, colorReset, msg)
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=TARGET")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all              build every command into dist/")
	fmt.Println("  rowmatch         build the interactive comparison tool")
	fmt.Println("  rowmatch-server  build the HTTP server")
	fmt.Println("  test             run go vet and the race-enabled test suite")
	fmt.Println("  release          clean, then build stripped binaries")
	fmt.Println("  clean            remove dist/")
}

func buildAll(ctx *BuildContext) {
	printInfo("Building all commands...")
	if err := os.MkdirAll(distDir, 0755); err != nil {
		printError(fmt.Sprintf("Failed to create %s: %v", distDir, err))
		os.Exit(1)
	}
	for _, name := range commands {
		buildCommand(name, ctx)
	}
}

func buildCommand(name string, ctx *BuildContext) {
	output := filepath.Join(distDir, name)
	if ctx.GOOS == "windows" {
		output += ".exe"
	}
	printInfo(fmt.Sprintf("Building %s for %s/%s...", name, ctx.GOOS, ctx.GOARCH))

	ldflags := []string{
		fmt.Sprintf("-X %s.BuildTime=%s", versionPackage, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", versionPackage, gitCommit()),
	}
	if ctx.Release {
		ldflags = append([]string{"-s", "-w"}, ldflags...)
	}

	args := []string{"build", "-trimpath", "-ldflags", strings.Join(ldflags, " "), "-o", output}
	if ctx.Verbose {
		args = append(args, "-v")
	}
	args = append(args, "./cmd/"+name)

	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(), "GOOS="+ctx.GOOS, "GOARCH="+ctx.GOARCH)
	if ctx.Release {
		cmd.Env = append(cmd.Env, "CGO_ENABLED=0")
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("Failed to build %s: %v", name, err))
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Built %s", output))
}

// gitCommit returns the short HEAD hash, or "unknown" outside a checkout
func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		printWarning("git commit unavailable, stamping \"unknown\"")
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

func runTests(verbose bool) {
	printInfo("Running go vet...")
	if err := runGo(verbose, "vet", "./..."); err != nil {
		printError(fmt.Sprintf("go vet failed: %v", err))
		os.Exit(1)
	}

	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	if err := runGo(verbose, append(args, "./...")...); err != nil {
		printError(fmt.Sprintf("Go tests failed: %v", err))
		os.Exit(1)
	}
	printSuccess("All tests passed")
}

func runGo(verbose bool, args ...string) error {
	if verbose {
		printInfo("go " + strings.Join(args, " "))
	}
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func clean(verbose bool) {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to remove %s: %v", distDir, err))
		os.Exit(1)
	}
	if verbose {
		printInfo("Removed " + distDir)
	}
}
