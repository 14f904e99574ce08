// Command dngpatch replaces the raw sensor plane of DNG files while
// keeping every other tag. Its subcommands also extract a plane to a
// linear TIFF, compare planes and check containers.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	gtiff "github.com/google/tiff"
	"github.com/hashicorp/go-multierror"

	"github.com/fumiama/dngpatch"
)

type command struct {
	name  string
	usage string
	run   func(args []string) error
}

var commands = []command{
	{"patch", "[-v] image.tiff original.dng [output.dng]", runPatch},
	{"extract", "[-v] [-delta n] [-backup] file.dng...", runExtract},
	{"verify", "file [other]", runVerify},
	{"check", "file.dng", runCheck},
	{"dump", "file.dng", runDump},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options] <args>\n\nCommands:\n", filepath.Base(os.Args[0]))
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %s %s\n", c.name, c.usage)
	}
}

func main() {
	log.SetHandler(cli.Default)
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Args[2:]); err != nil {
				log.WithError(err).Error(c.name)
				os.Exit(1)
			}
			return
		}
	}
	usage()
	os.Exit(1)
}

func newFlagSet(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	verbose := fs.Bool("v", false, "Verbose output")
	return fs, verbose
}

func setVerbose(v bool) {
	if v {
		log.SetLevel(log.DebugLevel)
	}
}

func runPatch(args []string) error {
	fs, verbose := newFlagSet("patch")
	fraction := fs.Float64("fraction", 0.8, "Share of the plane size a main IFD must reach to be taken as raw")
	fs.Parse(args)
	setVerbose(*verbose)
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return fmt.Errorf("usage: patch image.tiff original.dng [output.dng]")
	}
	image, original := fs.Arg(0), fs.Arg(1)
	output := strings.TrimSuffix(image, filepath.Ext(image)) + ".dng"
	if fs.NArg() == 3 {
		output = fs.Arg(2)
	}
	log.WithFields(log.Fields{"image": image, "original": original, "output": output}).Info("converting")

	buf, err := dngpatch.ReadLinear(image)
	if err != nil {
		return err
	}
	s := dngpatch.ComputeStats(buf)
	log.WithFields(log.Fields{"shape": s.Shape.String(), "min": s.Min, "max": s.Max}).Debug("image")

	p := dngpatch.NewPatcher(
		dngpatch.Logger(log.Log),
		dngpatch.RawFraction(*fraction),
		dngpatch.UseDecoder(dngpatch.RawDecoder{}),
	)
	res, err := p.PatchFile(original, output, buf, nil)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.WithError(w).Warn("patch")
	}
	log.WithFields(log.Fields{
		"strategy": res.Strategy,
		"bits":     res.Bits,
		"bytes":    res.ByteCount,
	}).Infof("wrote %s", output)
	return nil
}

func runExtract(args []string) error {
	fs, verbose := newFlagSet("extract")
	delta := fs.Int("delta", -1, "Value added to every sample, clamped to [0, 65535]")
	backup := fs.Bool("backup", false, "Copy each input to <name>.dng.backup first")
	fs.Parse(args)
	setVerbose(*verbose)
	files := fs.Args()
	if len(files) == 0 {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		for _, pattern := range []string{"*.dng", "*.DNG"} {
			m, _ := filepath.Glob(filepath.Join(dir, pattern))
			files = append(files, m...)
		}
		if len(files) == 0 {
			return fmt.Errorf("no DNG files found in %s", dir)
		}
	}

	var result *multierror.Error
	for _, f := range files {
		if err := extract(f, *delta, *backup); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", f, err))
		}
	}
	return result.ErrorOrNil()
}

func extract(path string, delta int, backup bool) error {
	ctx := log.WithField("file", path)
	if backup {
		bak := strings.TrimSuffix(path, filepath.Ext(path)) + ".dng.backup"
		if _, err := os.Stat(bak); os.IsNotExist(err) {
			ctx.WithField("backup", bak).Info("backup")
			if err := copyFile(path, bak); err != nil {
				return err
			}
		}
	}
	buf, _, err := dngpatch.RawDecoder{}.Decode(path)
	if err != nil {
		return err
	}
	before := dngpatch.ComputeStats(buf)
	out := dngpatch.Offset(buf, delta)
	after := dngpatch.ComputeStats(out)
	tiffPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".tiff"
	if err := dngpatch.WriteLinear(tiffPath, out); err != nil {
		return err
	}
	ctx.WithFields(log.Fields{
		"shape":  before.Shape.String(),
		"before": fmt.Sprintf("%d-%d", before.Min, before.Max),
		"after":  fmt.Sprintf("%d-%d", after.Min, after.Max),
	}).Infof("wrote %s", tiffPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func runVerify(args []string) error {
	fs, verbose := newFlagSet("verify")
	fs.Parse(args)
	setVerbose(*verbose)
	dec := dngpatch.RawDecoder{}
	switch fs.NArg() {
	case 1:
		buf, err := dngpatch.LoadRaster(fs.Arg(0), dec)
		if err != nil {
			return err
		}
		s := dngpatch.ComputeStats(buf)
		fmt.Printf("%s\n", fs.Arg(0))
		fmt.Printf("  shape:  %v\n", s.Shape)
		fmt.Printf("  range:  %d - %d\n", s.Min, s.Max)
		fmt.Printf("  mean:   %.2f\n", s.Mean)
		fmt.Printf("  median: %.2f\n", s.Median)
		fmt.Printf("  std:    %.2f\n", s.Std)
		fmt.Printf("  top-left corner:\n")
		for _, row := range dngpatch.Corner(buf, 5) {
			fmt.Printf("    %v\n", row)
		}
		return nil
	case 2:
		a, err := dngpatch.LoadRaster(fs.Arg(0), dec)
		if err != nil {
			return err
		}
		b, err := dngpatch.LoadRaster(fs.Arg(1), dec)
		if err != nil {
			return err
		}
		d, err := dngpatch.Diff(a, b)
		if err != nil {
			return err
		}
		fmt.Printf("%s -> %s\n", fs.Arg(0), fs.Arg(1))
		fmt.Printf("  diff range:  %d - %d\n", d.Min, d.Max)
		fmt.Printf("  diff mean:   %.2f\n", d.Mean)
		fmt.Printf("  diff median: %.2f\n", d.Median)
		fmt.Printf("  -1 samples:  %d / %d (%.2f%%)\n", d.MinusOne, d.Total, 100*float64(d.MinusOne)/float64(d.Total))
		distinct := d.Distinct
		if len(distinct) > 10 {
			distinct = distinct[:10]
		}
		fmt.Printf("  distinct:    %v\n", distinct)
		return nil
	}
	return fmt.Errorf("usage: verify file [other]")
}

func runCheck(args []string) error {
	fs, verbose := newFlagSet("check")
	fs.Parse(args)
	setVerbose(*verbose)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: check file.dng")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	rep, err := dngpatch.Check(data)
	if rep != nil {
		for _, w := range rep.Warnings {
			log.WithError(w).Warn("parse")
		}
		log.WithFields(log.Fields{"ifds": rep.IFDs, "raw": rep.RawPlanes}).Info(fs.Arg(0))
	}
	return err
}

func runDump(args []string) error {
	fs, _ := newFlagSet("dump")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: dump file.dng")
	}
	r, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer r.Close()

	gtiff.SetTiffFieldPrintFullFieldValue(false)
	t, err := gtiff.Parse(r, nil, nil)
	if err != nil {
		return err
	}
	order := "little endian"
	if t.Order() == gtiff.MagicBigEndian {
		order = "big endian"
	}
	fmt.Printf("Version: %d\n", t.Version())
	fmt.Printf("Byte Order: %s\n\n", order)
	for i, ifd := range t.IFDs() {
		fmt.Printf("IFD %d:\n", i)
		for _, f := range ifd.Fields() {
			fmt.Printf("%s\n", f)
		}
	}
	return nil
}
