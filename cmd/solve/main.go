// Command solve loads a 2D IK structure from a JSON config file, solves it
// for a target location, and prints the resulting effector locations and
// residual distances.
package main

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/gokinetics/fabrik2d/fabrik"
)

var logger = golog.NewDevelopmentLogger("fabrik2d")

func main() {
	if err := realMain(os.Args[1:]); err != nil {
		logger.Fatal(err)
	}
}

func realMain(args []string) error {
	flags := flag.NewFlagSet("solve", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a structure JSON file")
	targetArg := flags.String("target", "", "target location as x,y")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *configPath == "" || *targetArg == "" {
		return errors.New("both -config and -target are required")
	}

	target, err := parseTarget(*targetArg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		return err
	}
	structure, err := fabrik.UnmarshalStructureJSON(data)
	if err != nil {
		return err
	}

	logger.Infow("solving structure", "chains", structure.NumChains(), "target", *targetArg)
	if err := structure.SolveForTarget(target); err != nil {
		return err
	}

	for i := 0; i < structure.NumChains(); i++ {
		chain, err := structure.Chain(i)
		if err != nil {
			return err
		}
		effector, err := chain.EffectorLocation()
		if err != nil {
			return err
		}
		logger.Infow("chain solved",
			"chain", i,
			"name", chain.Name(),
			"effector_x", effector.X(),
			"effector_y", effector.Y(),
			"residual", chain.CurrentSolveDistance(),
		)
	}
	return nil
}

func parseTarget(arg string) (mgl64.Vec2, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		return mgl64.Vec2{}, errors.Errorf("target must be of the form x,y, got %q", arg)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return mgl64.Vec2{}, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return mgl64.Vec2{}, err
	}
	return mgl64.Vec2{x, y}, nil
}
