// Package errors provides examples of structured error handling in onix.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeMalformedDocument, "closing tag without opening tag").
		WithDetail("tag", "Product").
		WithDetail("offset", 1024)

	fmt.Println(err.Error())

	// Output:
	// malformed_document: closing tag without opening tag
}

// ExampleWrap shows how a sink failure is wrapped into an import error.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeImport, "sink failed").
		WithDetail("sink", "postgres")

	if errors.IsType(err, errors.ErrorTypeImport) {
		fmt.Println("This is an import error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause is preserved")
	}

	// Output:
	// This is an import error
	// Cause is preserved
}

// ExampleDetail shows how the plugin namespace is recovered from a wrapped error.
func ExampleDetail() {
	cause := fmt.Errorf("no PriceAmount")
	pluginErr := errors.Wrap(cause, errors.ErrorTypePlugin, "field extraction failed").
		WithDetail("namespace", "prices")
	outer := fmt.Errorf("record 3: %w", pluginErr)

	ns, ok := errors.Detail(outer, "namespace")
	fmt.Println(ns, ok)

	// Output:
	// prices true
}

// ExampleIsRetryable shows which errors the sink retry decorator retries.
func ExampleIsRetryable() {
	timeout := errors.New(errors.ErrorTypeTimeout, "statement timeout")
	imp := errors.Wrap(timeout, errors.ErrorTypeImport, "sink failed")
	fatal := errors.New(errors.ErrorTypeMalformedDocument, "marker not found")

	fmt.Println(errors.IsRetryable(timeout))
	fmt.Println(errors.IsRetryable(imp))
	fmt.Println(errors.IsRetryable(fatal))

	// Output:
	// true
	// true
	// false
}

// Example_errorChain shows how the message reads through several layers.
func Example_errorChain() {
	err := errors.New(errors.ErrorTypeConnection, "connection refused").
		WithDetail("host", "db.example.com")
	err = errors.Wrap(err, errors.ErrorTypeImport, "sink failed").
		WithDetail("sink", "postgres")

	fmt.Println(err)

	// Output:
	// import: sink failed: connection: connection refused
}

// ExampleIsType demonstrates that IsType looks at the outermost structured error.
func ExampleIsType() {
	decodeErr := errors.New(errors.ErrorTypeDecode, "unexpected EOF")
	wrapped := errors.Wrap(decodeErr, errors.ErrorTypeInternal, "record failed")

	fmt.Printf("decode: %v\n", errors.IsType(decodeErr, errors.ErrorTypeDecode))
	fmt.Printf("wrapped is internal: %v\n", errors.IsType(wrapped, errors.ErrorTypeInternal))
	fmt.Printf("wrapped is decode: %v\n", errors.IsType(wrapped, errors.ErrorTypeDecode))

	// Output:
	// decode: true
	// wrapped is internal: true
	// wrapped is decode: false
}
