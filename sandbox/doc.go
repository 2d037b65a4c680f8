// Package sandbox provides isolated execution of AI-generated Python code.
//
// The sandbox package implements the execution core: a WorkspaceManager that
// allocates uniquely-identified directories and sweeps stale ones on a timer,
// a Preprocessor that rewrites public-output path literals into
// workspace-relative names, an Executor that runs the source as a bounded
// child process in one of three modes (generic script, ReportLab PDF
// generation, Manim animation rendering), and a Harvester that relocates
// produced files into category-specific public output directories.
//
// Isolation here is by convention, not a security boundary: the child process
// runs with the server's user permissions and only its working directory,
// environment and wall-clock lifetime are constrained. Deployments that need
// genuine containment must wrap execution in a container or namespace
// primitive.
//
// Usage:
//
//	manager, err := sandbox.NewWorkspaceManager(logger, cfg)
//	harvester, err := sandbox.NewHarvester(logger, cfg)
//	executor := sandbox.NewExecutor(logger, cfg, manager, harvester)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Mode: sandbox.ModeGeneric,
//	    Code: "print('Hello, World!')",
//	})
package sandbox
