// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := NewInternalError(context.TODO(), "bad stuff %d", 42)
	require.Equal(t, "internal error: bad stuff 42", err.Error())
	require.Equal(t, ErrInternal, err.ErrorCode())
	require.True(t, IsMoErrCode(err, ErrInternal))
	require.False(t, IsMoErrCode(err, ErrOOM))

	require.True(t, IsMoErrCode(nil, Ok))
	require.False(t, IsMoErrCode(io.EOF, ErrInternal))
}

func TestErrorDetail(t *testing.T) {
	err := NewNotSupportedNoCtx("frob").WithDetail("only on tuesdays")
	require.Equal(t, "frob is not supported", err.Error())
	require.Equal(t, "frob is not supported: only on tuesdays", err.Display())
}

func TestConvertGoError(t *testing.T) {
	require.Nil(t, ConvertGoError(context.TODO(), nil))

	moe := NewOOMNoCtx()
	require.Equal(t, error(moe), ConvertGoError(context.TODO(), moe))

	err := ConvertGoError(context.TODO(), io.EOF)
	require.True(t, IsMoErrCode(err, ErrUnexpectedEOF))

	err = ConvertGoError(context.TODO(), io.ErrShortWrite)
	require.True(t, IsMoErrCode(err, ErrInternal))
}

func TestConvertPanicError(t *testing.T) {
	err := ConvertPanicError(context.TODO(), "boom")
	require.True(t, IsMoErrCode(err, ErrInternal))

	moe := NewInvalidInputNoCtx("x")
	require.Equal(t, moe, ConvertPanicError(context.TODO(), moe))
}
