// SPDX-FileCopyrightText: © 2024 Donald Hoelle. All rights reserved.
// SPDX-License-Identifier: MIT
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package [jsonable] converts arbitrary Go values into plain value trees:
// nil, bool, numbers, string, []any and map[string]any. The trees can be
// handed to any JSON or JSON-adjacent serializer without per-type
// marshaling code.
//
//	type Player struct {
//	  Name   string              `json:"name"`
//	  Joined time.Time           `json:"joined"`
//	  Games  map[string]struct{} `json:"games"`
//	  Coach  *Player             `json:"coach"`
//	}
//
//	tree, _ := jsonable.Encode(p, jsonable.ExcludeNone(true))
//	// tree == map[string]any{
//	//   "name":   "Ada",
//	//   "joined": "2023-06-26T12:30:00.000Z",
//	//   "games":  []any{"chess"},
//	// }
//
// # Encoding rules
//
// Each value is matched against an ordered chain of rules; the first match
// wins:
//
//  1. nil values (including nil pointers, maps and slices) encode as nil
//  2. a [Converter] registered for the value's exact type
//  3. a [Converter] registered for the nearest "ancestor" type: the
//     pointed-to type, an implemented interface, or an embedded struct
//  4. time.Time encodes as a string, time.Duration as float seconds
//  5. encoding.TextMarshaler, error and []byte values encode as strings
//  6. booleans, numbers and strings pass through; named scalar types are
//     converted to their builtin kind
//  7. non-nil pointers are dereferenced
//  8. structured records, i.e. structs and [Record] implementations, encode
//     as map[string]any
//  9. set-like values (a [Set], or a map with an empty struct element type)
//     encode as []any, or as a [Set] when Config.PreserveSet is true
//  10. other maps encode as map[string]any; keys must encode to scalars
//  11. slices and arrays encode as []any
//  12. anything else is rendered as a string, or rejected in strict mode
//
// The output of a converter is itself encoded, so converters may return
// partially converted values.
//
// # Records
//
// Struct fields are taken in declaration order. Only exported fields are
// encoded. The json struct tag names a field, and "-" skips it. The alias tag
// gives an alternate name used with [ByAlias]:
//
//	type Game struct {
//	  ID       string `json:"id"`
//	  MaxScore int    `json:"max_score" alias:"maxScore"`
//	  internal int
//	}
//
// Types may enumerate their own fields by implementing [Record], and may
// declare per-record rules by implementing [RuleSet].
//
// # Options
//
// Options given to [Encoder.Encode] override the [Config] for that call.
// Record-declared rules sit between the two: they override the
// configuration, and are overridden by call options only for the root value.
package jsonable
