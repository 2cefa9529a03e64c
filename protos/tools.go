//go:build tools

package protos

// Pins codegen binaries in go.mod.
import (
	_ "google.golang.org/grpc/cmd/protoc-gen-go-grpc"
)
