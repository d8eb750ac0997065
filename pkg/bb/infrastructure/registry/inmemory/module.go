// Package inmemory provides the in-memory implementation of the AllocationRegistry interface.
// This module integrates the in-memory registry into the application's dependency graph using Fx.
package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/burstbuf/pkg/bb/core/domain/repository"
)

// Module is an Fx module that provides InMemoryAllocationRegistry as a
// repository.AllocationRegistry interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryAllocationRegistry,
			fx.As(new(repository.AllocationRegistry)),
		),
	),
)
