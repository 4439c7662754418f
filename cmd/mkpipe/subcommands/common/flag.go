package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	pconfig "github.com/meerkat-pipeline/mkpipe/pkg/configs/pipeline"
	"github.com/meerkat-pipeline/mkpipe/pkg/utils"
)

// ProfileMarker is a file naming the site profile to be used in the directory and below.
const ProfileMarker = ".mkprofile"

type CommonFlags struct {
	Config       string `flag:"config" alias:"C" metavar:"PATH" help:"path to the pipeline config file"`
	Profile      string `flag:"profile" help:"site profile name to use"`
	ProfileStore string `flag:"profile-store" help:"path to site profile store file"`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of common flags from the directory `from`.
//
// The config is the nearest default_config.txt in `from` or its ancestors,
// or `from`/default_config.txt when there is none.
// The profile is the first line of the nearest .mkprofile, if any.
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{home: ""}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	home := detparam.home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	if abs, err := filepath.Abs(from); err == nil {
		from = abs
	}

	config, err := utils.SearchFileUpward(from, pconfig.DefaultFilename)
	if err != nil {
		if !errors.Is(err, utils.ErrSearchFile) {
			return CommonFlags{}, err
		}
		config = filepath.Join(from, pconfig.DefaultFilename)
	}

	profile := ""
	if marker, err := utils.SearchFileUpward(from, ProfileMarker); err == nil {
		content, err := os.ReadFile(marker)
		if err != nil {
			return CommonFlags{}, err
		}
		first, _, _ := strings.Cut(string(content), "\n")
		profile = strings.TrimSpace(first)
	}

	return CommonFlags{
		Config:       config,
		Profile:      profile,
		ProfileStore: filepath.Join(home, ".mkpipe", "profile"),
	}, nil
}
