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

package state

import (
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/frankban/quicktest"

	"github.com/chtl-lang/chtl/chtl/ast"
)

func TestPushScopeReleaseBalancesDepth(t *testing.T) {
	defer leaktest.Check(t)()
	c := quicktest.New(t)

	m := NewManager()
	c.Assert(m.ScopeDepth(), quicktest.Equals, 0)

	g1 := m.PushScope(ScopeElement, "div", ast.NilNode)
	c.Assert(m.ScopeDepth(), quicktest.Equals, 1)

	g2 := m.PushScope(ScopeStyleBlock, "", ast.NilNode)
	c.Assert(m.ScopeDepth(), quicktest.Equals, 2)
	c.Assert(m.CurrentScope().Kind, quicktest.Equals, ScopeStyleBlock)

	g2.Release()
	c.Assert(m.ScopeDepth(), quicktest.Equals, 1)
	c.Assert(m.CurrentScope().Kind, quicktest.Equals, ScopeElement)

	g1.Release()
	c.Assert(m.ScopeDepth(), quicktest.Equals, 0)
}

func TestScopeGuardReleaseIsIdempotent(t *testing.T) {
	c := quicktest.New(t)

	m := NewManager()
	g := m.PushScope(ScopeGlobal, "", ast.NilNode)
	g.Release()
	g.Release()
	c.Assert(m.ScopeDepth(), quicktest.Equals, 0)
}

func TestAdvancePhaseRejectsIllegalTransition(t *testing.T) {
	c := quicktest.New(t)

	m := NewManager()
	c.Assert(m.Phase(), quicktest.Equals, PhaseInit)

	err := m.Advance(PhaseFinalize)
	c.Assert(err, quicktest.Not(quicktest.IsNil))
	c.Assert(m.Phase(), quicktest.Equals, PhaseInit)
}

func TestNodeStateTransitionsFollowTable(t *testing.T) {
	c := quicktest.New(t)

	m := NewManager()
	id := ast.NodeID(0)
	m.InitNode(id)
	c.Assert(m.NodeState(id), quicktest.Equals, NodeCreated)

	c.Assert(m.TransitionNode(id, NodeParsing), quicktest.IsNil)
	c.Assert(m.TransitionNode(id, NodeParsed), quicktest.IsNil)

	err := m.TransitionNode(id, NodeGenerated)
	c.Assert(err, quicktest.Not(quicktest.IsNil))
}

func TestSetFlagsAndHasFlag(t *testing.T) {
	c := quicktest.New(t)

	m := NewManager()
	id := ast.NodeID(0)
	m.SetFlags(id, FlagTemplateNode|FlagCacheable)

	c.Assert(m.HasFlag(id, FlagTemplateNode), quicktest.IsTrue)
	c.Assert(m.HasFlag(id, FlagDynamic), quicktest.IsFalse)
}
