/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ring implements the message-transport core: padded sequence
// cells, the blocking, non-blocking and broadcast producer/consumer
// variants, slot index arithmetic, and the optional per-message checksum.
// Everything in this package runs on the hot path and allocates nothing
// once its object pools are warm.
package ring

// Message is implemented by the caller's message type. It is the only
// contract between ring and the application: ring never interprets message
// bytes, it only decides when and where they may be written or read.
//
// MaxSize is called once, at ring construction. WriteTo and ReadFrom are
// called on every publish/fetch and must not allocate if the hot path is to
// stay garbage-free; ordering against the sequence-number publish is
// entirely the ring's responsibility; these methods run plain loads/stores.
type Message interface {
	// MaxSize returns the largest number of bytes this message type will
	// ever write. It bounds the ring's slot size.
	MaxSize() int

	// WriteTo serializes the message into b, which is at least MaxSize()
	// bytes long, and returns the number of bytes written.
	WriteTo(b []byte) (int, error)

	// ReadFrom deserializes the message from b and returns the number of
	// bytes read.
	ReadFrom(b []byte) (int, error)
}

// Builder constructs fresh instances of a message type for an object pool
// to hold. It mirrors the original's Builder<E>/Class<E> pair: a Go
// generic function reference takes the place of reflection.
type Builder[E Message] func() E
