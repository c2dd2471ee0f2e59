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

package ast

import (
	"testing"

	"github.com/frankban/quicktest"
)

func TestArenaNewAssignsSequentialIDs(t *testing.T) {
	c := quicktest.New(t)

	a := NewArena()
	id1 := a.New(KindElement, Pos{Line: 1, Column: 1})
	id2 := a.New(KindText, Pos{Line: 2, Column: 1})

	c.Assert(id1, quicktest.Equals, NodeID(0))
	c.Assert(id2, quicktest.Equals, NodeID(1))
	c.Assert(a.Len(), quicktest.Equals, 2)
}

func TestArenaGetReturnsSameNodeForID(t *testing.T) {
	c := quicktest.New(t)

	a := NewArena()
	id := a.New(KindElement, Pos{})
	node := a.Get(id)
	node.Tag = "div"

	c.Assert(a.Get(id).Tag, quicktest.Equals, "div")
}

func TestNilNodeIsNotAValidArenaIndex(t *testing.T) {
	c := quicktest.New(t)
	c.Assert(NilNode, quicktest.Equals, NodeID(-1))
}
