package cluster

import "github.com/go-playground/validator/v10"

var validate = validator.New()

func validateLeaf(leaf LeafHost) error {
	return validate.Struct(leaf)
}
