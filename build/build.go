// Package build runs the external tool that turns a staged input into an
// output directory.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrBuild is returned when the build tool cannot be started or exits with a
// non-zero status.
var ErrBuild = errors.New("build failed")

// AntRunner launches Apache Ant from a DITA-OT style installation.
type AntRunner struct {
	// Home is the installation directory, used as ant.home and DITA_HOME.
	Home string
	// Java is the java executable. Empty means "java" from PATH.
	Java string
	// Stdout and Stderr receive the tool's output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger
}

// Build runs Ant with the input file and output directory passed as the
// args.input and output.dir properties, followed by args.
func (r *AntRunner) Build(ctx context.Context, input, outputDir string, args []string) error {
	cp, err := Classpath(r.Home)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuild, err)
	}

	java := r.Java
	if java == "" {
		java = "java"
	}
	argv := []string{
		"-cp", strings.Join(cp, string(os.PathListSeparator)),
		"-Dant.home=" + r.Home,
		"org.apache.tools.ant.Main",
		"-Dargs.input=" + input,
		"-Doutput.dir=" + outputDir,
	}
	argv = append(argv, args...)

	return run(ctx, r.Logger, r.Stdout, r.Stderr, java, argv...)
}

// CommandRunner runs an arbitrary command. The placeholders {input} and
// {output} are replaced in every element of Command; args are appended.
type CommandRunner struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *log.Logger
}

// Build runs the configured command.
func (r *CommandRunner) Build(ctx context.Context, input, outputDir string, args []string) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("%w: no command configured", ErrBuild)
	}
	repl := strings.NewReplacer("{input}", input, "{output}", outputDir)
	argv := make([]string, 0, len(r.Command)+len(args))
	for _, a := range r.Command {
		argv = append(argv, repl.Replace(a))
	}
	argv = append(argv, args...)
	return run(ctx, r.Logger, r.Stdout, r.Stderr, argv[0], argv[1:]...)
}

func run(ctx context.Context, logger *log.Logger, stdout, stderr io.Writer, name string, args ...string) error {
	if logger == nil {
		logger = log.Default()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Info("running build", "cmd", name, "args", args)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBuild, name, err)
	}
	return nil
}
