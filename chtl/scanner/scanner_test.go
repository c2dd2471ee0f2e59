// Copyright 2024 The CHTL Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scanner

import (
	"testing"

	"github.com/frankban/quicktest"
)

func TestScanSplitsPlainChtlFromScriptAndStyle(t *testing.T) {
	c := quicktest.New(t)

	src := `div{text{"a"}}style{.card{color:red;}}script{console.log(1);}span{text{"tail"}}`

	d := New("test.chtl", []byte(src), DefaultOptions())
	frags := d.Scan()

	var kinds []Kind
	for _, f := range frags {
		kinds = append(kinds, f.Kind)
	}
	c.Assert(kinds, quicktest.DeepEquals, []Kind{CHTL, CSS, JavaScript, CHTL})
}

func TestScanDetectsCHTLJSInScriptBody(t *testing.T) {
	c := quicktest.New(t)

	src := `script { {{.box}}->listen({ click: function() {} }); }`
	d := New("test.chtl", []byte(src), DefaultOptions())
	frags := d.Scan()

	c.Assert(frags, quicktest.HasLen, 1)
	c.Assert(frags[0].Kind, quicktest.Equals, CHTLJS)
}

func TestScanDetectsChtlInsideStyleBody(t *testing.T) {
	c := quicktest.New(t)

	src := `style { @Style DefaultText; }`
	d := New("test.chtl", []byte(src), DefaultOptions())
	frags := d.Scan()

	c.Assert(frags, quicktest.HasLen, 1)
	c.Assert(frags[0].Kind, quicktest.Equals, CHTL)
}

func TestScanOriginBlockIsOpaqueCHTLFragment(t *testing.T) {
	c := quicktest.New(t)

	src := `[Origin] @Html { <div>raw</div> }`
	d := New("test.chtl", []byte(src), DefaultOptions())
	frags := d.Scan()

	c.Assert(frags, quicktest.HasLen, 1)
	c.Assert(frags[0].Kind, quicktest.Equals, CHTL)
	c.Assert(string(d.Slice(frags[0])), quicktest.Equals, src)
}

func TestScanGrowsWindowAndWarnsOnUnclosedBlock(t *testing.T) {
	c := quicktest.New(t)

	body := make([]byte, 0, 9000)
	body = append(body, []byte("script { ")...)
	for len(body) < 9000 {
		body = append(body, "x = 1;\n"...)
	}
	src := string(body) // deliberately never closes the brace

	d := New("test.chtl", []byte(src), Options{Step: 512, HardMax: 2048})
	frags := d.Scan()

	c.Assert(len(frags) >= 1, quicktest.IsTrue)
	c.Assert(frags[0].Kind, quicktest.Equals, Mixed)
	c.Assert(d.Diagnostics().Len(), quicktest.Equals, 1)
}

func TestMergeAdjacentCombinesConsecutivePlainChtl(t *testing.T) {
	c := quicktest.New(t)

	frags := []Fragment{
		{Kind: CHTL, Start: 0, End: 5, CanAggregate: true},
		{Kind: CHTL, Start: 5, End: 10, CanAggregate: true},
		{Kind: CSS, Start: 10, End: 15, CanAggregate: false},
	}
	merged := mergeAdjacent(frags)
	c.Assert(merged, quicktest.HasLen, 2)
	c.Assert(merged[0].Start, quicktest.Equals, 0)
	c.Assert(merged[0].End, quicktest.Equals, 10)
}

func TestFragmentCacheComputesOnceForSameContent(t *testing.T) {
	c := quicktest.New(t)

	fc := NewFragmentCache[int]()
	calls := 0
	compile := func() (int, error) {
		calls++
		return 42, nil
	}

	v1, err := fc.GetOrCompile([]byte("same content"), compile)
	c.Assert(err, quicktest.IsNil)
	c.Assert(v1, quicktest.Equals, 42)

	v2, err := fc.GetOrCompile([]byte("same content"), compile)
	c.Assert(err, quicktest.IsNil)
	c.Assert(v2, quicktest.Equals, 42)
	c.Assert(calls, quicktest.Equals, 1)
}

func TestHashDiffersForDifferentContent(t *testing.T) {
	c := quicktest.New(t)

	c.Assert(Hash([]byte("a")), quicktest.Not(quicktest.Equals), Hash([]byte("b")))
}
