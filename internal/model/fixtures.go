package model

// DemoSession builds the in-memory session used by --demo: a login sequence
// diagram, a deploy flowchart, one walkthrough, and an xref bridging them.
func DemoSession() *Session {
	s := NewSession("demo")

	seq := NewSequenceDiagram("login-seq", "Login flow")
	client := &Participant{ID: seq.Alloc.Mint(PrefixParticipant), MermaidIdent: "client", DisplayLabel: "Client"}
	api := &Participant{ID: seq.Alloc.Mint(PrefixParticipant), MermaidIdent: "api", DisplayLabel: "API"}
	db := &Participant{ID: seq.Alloc.Mint(PrefixParticipant), MermaidIdent: "db", DisplayLabel: "Database"}
	seq.Seq.Participants = []*Participant{client, api, db}
	m1 := &Message{ID: seq.Alloc.Mint(PrefixMessage), From: client.ID, To: api.ID, Kind: MessageSync, Text: "POST /login", OrderKey: OrderKeyFromIndex(1)}
	m2 := &Message{ID: seq.Alloc.Mint(PrefixMessage), From: api.ID, To: db.ID, Kind: MessageSync, Text: "SELECT user", OrderKey: OrderKeyFromIndex(2)}
	m3 := &Message{ID: seq.Alloc.Mint(PrefixMessage), From: db.ID, To: api.ID, Kind: MessageReturn, Text: "row", OrderKey: OrderKeyFromIndex(3)}
	m4 := &Message{ID: seq.Alloc.Mint(PrefixMessage), From: api.ID, To: client.ID, Kind: MessageReturn, Text: "200 OK", OrderKey: OrderKeyFromIndex(4)}
	seq.Seq.Messages = []*Message{m1, m2, m3, m4}
	block := &Block{
		ID:   seq.Alloc.Mint(PrefixBlock),
		Kind: BlockAlt, Header: "credentials valid",
		Sections: []*Section{
			{ID: seq.Alloc.Mint(PrefixSection), Kind: SectionMain, Messages: []ObjectID{m3.ID}},
			{ID: seq.Alloc.Mint(PrefixSection), Kind: SectionElse, Header: "invalid", Messages: []ObjectID{m4.ID}},
		},
	}
	seq.Seq.Blocks = []*Block{block}
	_ = s.AddDiagram(seq)

	flow := NewFlowchartDiagram("deploy-flow", "Deploy pipeline")
	build := &FlowNode{ID: flow.Alloc.Mint(PrefixNode), MermaidID: "build", Label: "Build", Shape: ShapeRect}
	test := &FlowNode{ID: flow.Alloc.Mint(PrefixNode), MermaidID: "test", Label: "Test", Shape: ShapeRound}
	gate := &FlowNode{ID: flow.Alloc.Mint(PrefixNode), MermaidID: "gate", Label: "Approved?", Shape: ShapeDiamond}
	ship := &FlowNode{ID: flow.Alloc.Mint(PrefixNode), MermaidID: "ship", Label: "Ship", Shape: ShapeRect}
	flow.Flow.Nodes = []*FlowNode{build, test, gate, ship}
	flow.Flow.Edges = []*FlowEdge{
		{ID: flow.Alloc.Mint(PrefixEdge), From: build.ID, To: test.ID},
		{ID: flow.Alloc.Mint(PrefixEdge), From: test.ID, To: gate.ID, Label: "green"},
		{ID: flow.Alloc.Mint(PrefixEdge), From: gate.ID, To: ship.ID, Label: "yes"},
	}
	_ = s.AddDiagram(flow)

	wt := NewWalkthrough("onboarding", "How a login becomes a deploy")
	w1 := &WnNode{ID: WnID(wt.Alloc.Mint(PrefixWnNode)), Title: "Login request", Refs: []ObjectRef{seq.Ref(CategorySeqMessage, m1.ID)}}
	w2 := &WnNode{ID: WnID(wt.Alloc.Mint(PrefixWnNode)), Title: "Ship it", Refs: []ObjectRef{flow.Ref(CategoryFlowNode, ship.ID)}}
	wt.Nodes[w1.ID] = w1
	wt.Nodes[w2.ID] = w2
	wt.Edges = []WnEdge{{From: w1.ID, To: w2.ID, Kind: "next"}}
	s.Walkthroughs[wt.ID] = wt

	_ = s.AddXRef(&XRef{
		ID:   "x:demo",
		From: flow.Ref(CategoryFlowNode, ship.ID),
		To:   seq.Ref(CategorySeqMessage, m4.ID),
		Kind: "nav",
	})

	s.ActiveDiagramID = seq.ID
	s.ActiveWalkthroughID = wt.ID
	return s
}
