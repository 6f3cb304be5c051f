// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package avroio

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hamba/avro/v2/ocf"
	"github.com/klauspost/compress/zstd"
)

// Codec is the value of the avro.codec header entry.
type Codec string

const (
	CodecNull      Codec = "null"
	CodecDeflate   Codec = "deflate"
	CodecSnappy    Codec = "snappy"
	CodecZstandard Codec = "zstandard"
)

var (
	deflateCodec = &ocf.DeflateCodec{}
	// snappy blocks carry a big endian CRC32 of the uncompressed data,
	// which the ocf codec verifies
	snappyCodec = &ocf.SnappyCodec{}

	// ocf.ZStandardCodec only gets its decoder from the ocf package's own
	// codec resolution, so zstandard blocks share one decoder here.
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdDec() (*zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return zstdDecoder, zstdErr
}

// DecompressBlock returns the decompressed data of block. For CodecNull the
// block's own buffer is returned. Corrupt blocks are reported as
// arrow.ErrInvalid.
func DecompressBlock(block *Block, codec Codec) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch codec {
	case CodecNull, "":
		return block.Data, nil
	case CodecDeflate:
		out, err = deflateCodec.Decode(block.Data)
	case CodecSnappy:
		out, err = snappyCodec.Decode(block.Data)
	case CodecZstandard:
		dec, derr := zstdDec()
		if derr != nil {
			return nil, derr
		}
		out, err = dec.DecodeAll(block.Data, nil)
	default:
		return nil, fmt.Errorf("%w: avroio: codec %q", arrow.ErrNotImplemented, codec)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: avroio: block %d: %s: %w", arrow.ErrInvalid, block.Index, codec, err)
	}
	return out, nil
}
