// Copyright 2021 gorse Project Authors
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
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Validate checks the configuration. All violations are joined in a not
// valid error.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		return lo.Ternary(name == "", field.Name, name)
	})
	english := en.New()
	trans, _ := ut.New(english, english).GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}
	if err := validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return errors.Trace(err)
		}
		messages := lo.Map(validationErrors, func(e validator.FieldError, _ int) string {
			return e.Translate(trans)
		})
		return errors.NotValidf("config: %s", strings.Join(messages, "; "))
	}
	sources := lo.Count([]bool{config.Data.CSV != "", config.Data.LibFM != "", config.Data.Synthetic > 0}, true)
	if sources > 1 {
		return errors.NotValidf("config: more than one data source")
	}
	return nil
}
