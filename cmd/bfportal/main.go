// Command bfportal drives the conversion pipeline between intermediate
// JSON game data and text scene files.
//
// Usage:
//
//	bfportal build  -project project.yaml
//	bfportal import -project project.yaml -in level.json -out level.tscn
//	bfportal export -project project.yaml -in level.tscn -out level.json
//	bfportal repath -project project.yaml -file asset_types.json -old X -new Y
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zachatkinson/bf1942-portal-conversion-sub002/config"
	"github.com/zachatkinson/bf1942-portal-conversion-sub002/convert"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	projectPath := fs.String("project", "project.yaml", "project configuration file")
	in := fs.String("in", "", "input file")
	out := fs.String("out", "", "output file (defaults next to the input)")
	oldPrefix := fs.String("old", "", "directory prefix to replace")
	newPrefix := fs.String("new", "", "replacement directory prefix")
	file := fs.String("file", "", "asset-type definition file to rewrite")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	proj, err := config.Load(*projectPath)
	if err != nil {
		log.Fatalf("loading project: %v", err)
	}
	ctx, err := convert.NewRunContext(log, proj)
	if err != nil {
		log.Fatalf("preparing run: %v", err)
	}

	var sum *convert.Summary
	switch cmd {
	case "build":
		sum = convert.BuildProject(ctx, proj)
	case "import":
		if *in == "" {
			log.Fatalf("import: -in is required")
		}
		sum = convert.ImportOne(ctx, *in, defaultOut(*in, *out, ".tscn"))
	case "export":
		if *in == "" {
			log.Fatalf("export: -in is required")
		}
		sum = convert.ExportOne(ctx, *in, defaultOut(*in, *out, ".json"))
	case "repath":
		if *file == "" || *oldPrefix == "" {
			log.Fatalf("repath: -file and -old are required")
		}
		sum, err = convert.RepathOne(ctx, *file, *oldPrefix, *newPrefix)
		if err != nil {
			log.Fatalf("repath: %v", err)
		}
	default:
		usage()
		os.Exit(2)
	}

	if !sum.OK() {
		for _, f := range sum.Failures {
			log.Errorf("failed: %s: %v", f.Path, f.Err)
		}
		os.Exit(1)
	}
	log.Infof("%s", sum)
}

func defaultOut(in, out, ext string) string {
	if out != "" {
		return out
	}
	return strings.TrimSuffix(in, filepath.Ext(in)) + ext
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bfportal <build|import|export|repath> [flags]")
}
