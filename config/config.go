// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/deepctr/model"
	"github.com/gorse-io/deepctr/model/ctr"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the configuration of a training run.
type Config struct {
	Model   ModelConfig   `mapstructure:"model"`
	Train   TrainConfig   `mapstructure:"train"`
	Data    DataConfig    `mapstructure:"data"`
	Output  OutputConfig  `mapstructure:"output"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ModelConfig struct {
	EmbedDim      int     `mapstructure:"embed_dim" validate:"gt=0"`
	HiddenLayers  []int   `mapstructure:"hidden_layers" validate:"min=1,dive,gt=0"`
	Dropout       float32 `mapstructure:"dropout" validate:"gte=0,lt=1"`
	CrossLayers   int     `mapstructure:"cross_layers" validate:"gte=0"`
	CrossResidual string  `mapstructure:"cross_residual" validate:"oneof=input layer"`
	OutputLayer   bool    `mapstructure:"output_layer"`
}

type TrainConfig struct {
	Epochs       int     `mapstructure:"epochs" validate:"gt=0"`
	BatchSize    int     `mapstructure:"batch_size" validate:"gt=1"`
	LearningRate float32 `mapstructure:"learning_rate" validate:"gt=0"`
	WeightDecay  float32 `mapstructure:"weight_decay" validate:"gte=0"`
	Optimizer    string  `mapstructure:"optimizer" validate:"oneof=adam sgd"`
	Momentum     float32 `mapstructure:"momentum" validate:"gte=0,lt=1"`
	RandomState  int64   `mapstructure:"random_state"`
	Verbose      int     `mapstructure:"verbose" validate:"gte=0"`
	Patience     int     `mapstructure:"patience" validate:"gte=0"`
	Trials       int     `mapstructure:"trials" validate:"gt=0"`
}

type DataConfig struct {
	CSV          string  `mapstructure:"csv"`
	LibFM        string  `mapstructure:"libfm"`
	Synthetic    int     `mapstructure:"synthetic" validate:"gte=0"`
	SyntheticDim int     `mapstructure:"synthetic_dim" validate:"gt=0"`
	Sample       int     `mapstructure:"sample" validate:"gte=0"`
	Separator    string  `mapstructure:"separator" validate:"required"`
	Header       bool    `mapstructure:"header"`
	LabelColumn  int     `mapstructure:"label_column"`
	TrainRatio   float32 `mapstructure:"train_ratio" validate:"gt=0,lte=1"`
	TestRatio    float32 `mapstructure:"test_ratio" validate:"gt=0,lte=1"`
}

type OutputConfig struct {
	Plot        string `mapstructure:"plot"`
	History     string `mapstructure:"history" validate:"omitempty,startswith=sqlite://"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// GetDefaultConfig returns the default configuration of a model, i.e. dcn or
// nfm.
func GetDefaultConfig(modelName string) (*Config, error) {
	config := &Config{
		Model: ModelConfig{
			CrossResidual: ctr.CrossResidualInput,
		},
		Train: TrainConfig{
			Optimizer: ctr.OptimizerAdam,
			Verbose:   10,
			Trials:    10,
		},
		Data: DataConfig{
			SyntheticDim: 10,
			Separator:    ",",
			LabelColumn:  -1,
			TestRatio:    0.5,
		},
		Tracing: TracingConfig{
			Exporter: "otlp",
			Sampler:  "always",
			Ratio:    1,
		},
	}
	switch strings.ToLower(modelName) {
	case "dcn":
		config.Model.EmbedDim = 1024
		config.Model.HiddenLayers = []int{128, 64, 32}
		config.Model.Dropout = 0.3
		config.Model.CrossLayers = 3
		config.Train.Epochs = 50
		config.Train.BatchSize = 128
		config.Train.LearningRate = 1e-3
		config.Train.WeightDecay = 1e-1
		config.Data.TrainRatio = 0.8
	case "nfm":
		config.Model.EmbedDim = 64
		config.Model.HiddenLayers = []int{256, 128, 64}
		config.Model.Dropout = 0.5
		config.Train.Epochs = 100
		config.Train.BatchSize = 256
		config.Train.LearningRate = 1e-2
		config.Train.WeightDecay = 1e-6
		config.Data.TrainRatio = 0.9
	default:
		return nil, errors.NotSupportedf("model %s", modelName)
	}
	return config, nil
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"embed-dim":      "model.embed_dim",
	"hidden-layers":  "model.hidden_layers",
	"dropout":        "model.dropout",
	"cross-layers":   "model.cross_layers",
	"cross-residual": "model.cross_residual",
	"output-layer":   "model.output_layer",
	"epochs":         "train.epochs",
	"batch-size":     "train.batch_size",
	"learning-rate":  "train.learning_rate",
	"weight-decay":   "train.weight_decay",
	"optimizer":      "train.optimizer",
	"momentum":       "train.momentum",
	"random-state":   "train.random_state",
	"verbose":        "train.verbose",
	"patience":       "train.patience",
	"trials":         "train.trials",
	"csv":            "data.csv",
	"libfm":          "data.libfm",
	"synthetic":      "data.synthetic",
	"synthetic-dim":  "data.synthetic_dim",
	"sample":         "data.sample",
	"sep":            "data.separator",
	"header":         "data.header",
	"label-column":   "data.label_column",
	"train-ratio":    "data.train_ratio",
	"test-ratio":     "data.test_ratio",
	"plot":           "output.plot",
	"history":        "output.history",
	"metrics-file":   "output.metrics_file",
}

// AddFlags registers command line flags that override the configuration.
// Flag defaults are not used, defaults come from GetDefaultConfig.
func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.Int("embed-dim", 0, "embedding dimension")
	flagSet.String("hidden-layers", "", "comma separated widths of hidden layers")
	flagSet.Float32("dropout", 0, "dropout rate")
	flagSet.Int("cross-layers", 0, "number of cross layers")
	flagSet.String("cross-residual", "", "residual of cross layers (input or layer)")
	flagSet.Bool("output-layer", false, "append a scoring layer to the deep network of DCN")
	flagSet.Int("epochs", 0, "number of epochs")
	flagSet.Int("batch-size", 0, "batch size")
	flagSet.Float32("learning-rate", 0, "learning rate")
	flagSet.Float32("weight-decay", 0, "weight decay")
	flagSet.String("optimizer", "", "optimizer (adam or sgd)")
	flagSet.Float32("momentum", 0, "momentum of sgd")
	flagSet.Int64("random-state", 0, "random seed")
	flagSet.Int("verbose", 0, "log every n iterations")
	flagSet.Int("patience", 0, "stop if AUC has not improved for n epochs")
	flagSet.Int("trials", 0, "number of trials for tuning")
	flagSet.String("csv", "", "load dataset from a csv file")
	flagSet.String("libfm", "", "load dataset from a libfm file")
	flagSet.Int("synthetic", 0, "generate n synthetic samples")
	flagSet.Int("synthetic-dim", 0, "number of fields of synthetic samples")
	flagSet.Int("sample", 0, "train on n rows sampled from the dataset, 0 to use all rows")
	flagSet.String("sep", "", "separator of csv file")
	flagSet.Bool("header", false, "csv file has a header")
	flagSet.Int("label-column", 0, "label column of csv file, negative counts from the end")
	flagSet.Float32("train-ratio", 0, "ratio of training set")
	flagSet.Float32("test-ratio", 0, "ratio of test set in the rest")
	flagSet.String("plot", "", "save learning curves to an image")
	flagSet.String("history", "", "save training history to a database, e.g. sqlite://history.db")
	flagSet.String("metrics-file", "", "save prometheus metrics to a text file")
}

// LoadConfig loads the configuration of a model. Values are read from the
// defaults, the TOML file at path if not empty, DEEPCTR_ environment variables
// and changed flags, in ascending priority.
func LoadConfig(modelName, path string, flagSet *pflag.FlagSet) (*Config, error) {
	defaults, err := GetDefaultConfig(modelName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	v := viper.New()
	var settings map[string]any
	if err = mapstructure.Decode(defaults, &settings); err != nil {
		return nil, errors.Trace(err)
	}
	setDefaults(v, "", settings)

	v.SetEnvPrefix("deepctr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err = v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if flagSet != nil {
		for name, key := range flagKeys {
			if flag := flagSet.Lookup(name); flag != nil && flag.Changed {
				v.Set(key, flag.Value.String())
			}
		}
	}

	var config Config
	if err = v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToIntSliceHookFunc(","),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err = config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper, prefix string, settings map[string]any) {
	for key, value := range settings {
		if nested, ok := value.(map[string]any); ok {
			setDefaults(v, prefix+key+".", nested)
		} else {
			v.SetDefault(prefix+key, value)
		}
	}
}

// stringToIntSliceHookFunc parses "128,64,32" to []int.
func stringToIntSliceHookFunc(sep string) mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf([]int{}) {
			return data, nil
		}
		s := strings.Trim(strings.TrimSpace(data.(string)), "[]")
		if s == "" {
			return []int{}, nil
		}
		fields := strings.Split(s, sep)
		result := make([]int, len(fields))
		for i, field := range fields {
			value, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, errors.NotValidf("integer %q", field)
			}
			result[i] = value
		}
		return result, nil
	}
}

// ModelParams converts the configuration to hyper-parameters of a model.
func (config *Config) ModelParams() model.Params {
	return model.Params{
		model.NEpochs:       config.Train.Epochs,
		model.BatchSize:     config.Train.BatchSize,
		model.Lr:            config.Train.LearningRate,
		model.Reg:           config.Train.WeightDecay,
		model.Optimizer:     config.Train.Optimizer,
		model.Momentum:      config.Train.Momentum,
		model.RandomState:   config.Train.RandomState,
		model.EmbedDim:      config.Model.EmbedDim,
		model.HiddenLayers:  config.Model.HiddenLayers,
		model.Dropout:       config.Model.Dropout,
		model.CrossLayers:   config.Model.CrossLayers,
		model.CrossResidual: config.Model.CrossResidual,
		model.OutputLayer:   config.Model.OutputLayer,
	}
}

// FitConfig returns the configuration of the trainer.
func (config *Config) FitConfig() *ctr.FitConfig {
	return ctr.NewFitConfig().
		SetVerbose(config.Train.Verbose).
		SetPatience(config.Train.Patience)
}
