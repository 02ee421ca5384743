package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/Noofbiz/carPrice/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		dir := t.TempDir()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(config.LoadOptions{})

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Trees, convey.ShouldEqual, 700)
				convey.So(cfg.MinNodeSize, convey.ShouldEqual, 10)
				convey.So(cfg.Seed, convey.ShouldEqual, int64(42))
				convey.So(cfg.OutDir, convey.ShouldEqual, "out")
				convey.So(cfg.SubmissionPath(), convey.ShouldEqual, filepath.Join("out", "submission.txt"))
				convey.So(cfg.PlotPath(), convey.ShouldEqual, filepath.Join("out", "calibration.png"))
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := writeFile(t, dir, "carprice.yaml", `
train_path: /data/train.csv
trees: 50
seed: 7
identity: "Jane Analyst"
dump_matrices: true
`)
			cfg, err := config.Load(config.LoadOptions{ConfigPath: path})

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TrainPath, convey.ShouldEqual, "/data/train.csv")
				convey.So(cfg.Trees, convey.ShouldEqual, 50)
				convey.So(cfg.Seed, convey.ShouldEqual, int64(7))
				convey.So(cfg.Identity, convey.ShouldEqual, "Jane Analyst")
				convey.So(cfg.DumpMatrices, convey.ShouldBeTrue)
				convey.So(cfg.TestPath, convey.ShouldEqual, "data/test.csv")
			})
		})

		convey.Convey("When the YAML path comes from the environment", func() {
			path := writeFile(t, dir, "env.yaml", "trees: 12\n")
			_ = os.Setenv(config.ConfigEnv, path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(config.LoadOptions{})

			convey.Convey("Then the file is used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Trees, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When environment variables and overrides are layered", func() {
			path := writeFile(t, dir, "carprice.yaml", "trees: 50\nmin_node_size: 5\nworkers: 2\n")
			_ = os.Setenv("CARPRICE_TREES", "80")
			_ = os.Setenv("CARPRICE_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(config.LoadOptions{
				ConfigPath: path,
				Overrides:  map[string]any{"workers": 4},
			})

			convey.Convey("Then precedence is file < env < overrides", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MinNodeSize, convey.ShouldEqual, 5)
				convey.So(cfg.Trees, convey.ShouldEqual, 80)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.Workers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When a dotenv file is given", func() {
			envFile := writeFile(t, dir, ".env", "CARPRICE_IDENTIFIER=abc123\nCARPRICE_SEED=99\n")
			_ = os.Setenv("CARPRICE_SEED", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(config.LoadOptions{EnvFile: envFile})

			convey.Convey("Then it fills the environment without overriding it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Identifier, convey.ShouldEqual, "abc123")
				convey.So(cfg.Seed, convey.ShouldEqual, int64(5))
			})
		})

		convey.Convey("When the dotenv file does not exist", func() {
			_, err := config.Load(config.LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})

			convey.Convey("Then it is ignored", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the YAML file is missing", func() {
			_, err := config.Load(config.LoadOptions{ConfigPath: filepath.Join(dir, "nope.yaml")})

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the result is invalid", func() {
			_ = os.Setenv("CARPRICE_TREES", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(config.LoadOptions{})

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "trees must be at least 1")
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("Then it is valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When every check fails", func() {
			cfg.TrainPath = ""
			cfg.TestPath = ""
			cfg.SubmissionFile = ""
			cfg.MinNodeSize = 0
			cfg.Workers = -1
			cfg.LogLevel = "loud"
			cfg.LogFormat = "xml"
			err := cfg.Validate()

			convey.Convey("Then all problems are reported", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				for _, want := range []string{"train_path", "test_path", "submission_file", "min_node_size", "workers", "log_level", "log_format"} {
					convey.So(err.Error(), convey.ShouldContainSubstring, want)
				}
			})
		})

		convey.Convey("When an artifact path is absolute", func() {
			abs := filepath.Join(t.TempDir(), "sub.txt")
			cfg.SubmissionFile = abs

			convey.Convey("Then it is not joined to the output directory", func() {
				convey.So(cfg.SubmissionPath(), convey.ShouldEqual, abs)
				convey.So(cfg.MatrixPath("train"), convey.ShouldEqual, filepath.Join("out", "train_matrix.tensor"))
			})
		})
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, config.EnvPrefix) {
			_ = os.Unsetenv(strings.SplitN(kv, "=", 2)[0])
		}
	}
}
