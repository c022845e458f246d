//go:build !gui

package main

import (
	"context"
	"errors"
)

func runGUI(context.Context, *app) error {
	return errors.New("built without GUI support (rebuild with -tags gui)")
}
