package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tdgrid/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func TestLoadConfig(t *testing.T) {
	Convey("Given settings naming a missing config file", t, func() {
		settings := viper.New()
		settings.Set("config", filepath.Join(t.TempDir(), "config.yaml"))

		Convey("The defaults are used", func() {
			cfg, err := loadConfig(settings)
			So(err, ShouldBeNil)
			So(cfg, ShouldResemble, reinforcement.DefaultTrainingConfig())
		})

		Convey("Seed, verbose and debug override the config", func() {
			settings.Set("seed", 7)
			settings.Set("verbose", true)
			settings.Set("debug", true)
			cfg, err := loadConfig(settings)
			So(err, ShouldBeNil)
			So(cfg.Seed, ShouldEqual, 7)
			So(cfg.Verbose, ShouldBeTrue)
			So(cfg.Convergence.CheckInterval, ShouldEqual, 10_000)
			So(cfg.Convergence.MaxIterations, ShouldEqual, 100_000)
		})
	})

	Convey("Given a malformed config file", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		So(os.WriteFile(path, []byte("kind: somethingElse\n"), 0o644), ShouldBeNil)
		settings := viper.New()
		settings.Set("config", path)
		_, err := loadConfig(settings)
		So(err, ShouldNotBeNil)
	})

	Convey("The repo's config file is valid", t, func() {
		settings := viper.New()
		settings.Set("config", defaultConfig)
		cfg, err := loadConfig(settings)
		So(err, ShouldBeNil)
		So(cfg.Alpha(), ShouldEqual, reinforcement.DEFAULT_ALPHA)
		So(cfg.Gamma(), ShouldEqual, reinforcement.DEFAULT_GAMMA)
	})
}

func TestRootCmd(t *testing.T) {
	Convey("Flags are readable through the settings", t, func() {
		settings := viper.New()
		cmd := newRootCmd(settings)
		So(cmd.PersistentFlags().Set("seed", "99"), ShouldBeNil)
		So(settings.GetInt64("seed"), ShouldEqual, 99)
		So(settings.IsSet("seed"), ShouldBeTrue)
		So(settings.GetString("config"), ShouldEqual, defaultConfig)
		So(settings.GetString("port"), ShouldEqual, "8080")
	})
}

func TestExportSnapshots(t *testing.T) {
	Convey("Snapshots are dropped while nobody receives them", t, func() {
		snapshots := make(chan reinforcement.Snapshot, 1)
		export := exportSnapshots(snapshots)
		export(context.Background(), reinforcement.Snapshot{Iteration: 1})
		export(context.Background(), reinforcement.Snapshot{Iteration: 2})
		So((<-snapshots).Iteration, ShouldEqual, 1)
		So(snapshots, ShouldBeEmpty)
	})
}

func TestStatusLine(t *testing.T) {
	Convey("The status line reports the latest checkpoint", t, func() {
		sl := &statusLine{}
		So(sl.String(), ShouldEqual, "awaiting first checkpoint")
		sl.update(context.Background(), reinforcement.Snapshot{Pass: 2, Iteration: 3000, MaxError: 0.5})
		So(sl.String(), ShouldEqual, "pass 2, iteration 3000, max_error 0.5000")
	})
}
