// internal/phase/graph.go
package phase

// kind describes the behavior of one phase ID. The table below is the whole transition graph:
//
//	RoundStartup -> BeginTurn (first seat) -> Main -> EndTurn -> BeginTurn (next seat) ...
//	EndTurn (last seat) -> RoundEnd -> RoundStartup
type kind struct {
	name       string
	turnScoped bool
	// autoEnd phases end right after executing; the others wait for EndPhase.
	autoEnd          bool
	endsOnPlayerDone bool

	enter   func(g TurnedGame, p *Phase)
	execute func(g TurnedGame, p *Phase)
	exit    func(g TurnedGame, p *Phase)
	// next returns the default successor. Skipped when the phase carries an explicit Next.
	next func(g TurnedGame, p *Phase) *Phase
}

var kinds = [numIDs]kind{
	RoundStartup: {
		name:    "Round Startup",
		autoEnd: true,
		enter: func(g TurnedGame, p *Phase) {
			g.OnBeforeNextRound(p)
		},
		execute: func(g TurnedGame, p *Phase) {
			p.Round = g.StartNextRound()
			p.log.Infof("Round %d started", p.Round)
		},
		exit: func(g TurnedGame, p *Phase) {
			g.OnNextRoundBegan(p)
		},
		next: func(g TurnedGame, p *Phase) *Phase {
			return g.FirstTurnPhase()
		},
	},
	BeginTurn: {
		name:       "Beginning of Turn",
		turnScoped: true,
		autoEnd:    true,
		enter: func(g TurnedGame, p *Phase) {
			g.OnBeforeNextTurnPhase(p)
		},
		next: func(g TurnedGame, p *Phase) *Phase {
			return g.NewPhase(Main)
		},
	},
	Main: {
		name:             "Main",
		turnScoped:       true,
		endsOnPlayerDone: true,
		enter: func(g TurnedGame, p *Phase) {
			g.OnBeforeNextTurnPhase(p)
		},
		next: func(g TurnedGame, p *Phase) *Phase {
			return g.NewPhase(EndTurn)
		},
	},
	EndTurn: {
		name:       "End of Turn",
		turnScoped: true,
		autoEnd:    true,
		enter: func(g TurnedGame, p *Phase) {
			g.OnBeforeNextTurnPhase(p)
		},
		exit: func(g TurnedGame, p *Phase) {
			p.wrapped = g.NextPlayersTurn()
		},
		next: func(g TurnedGame, p *Phase) *Phase {
			return g.PhaseAfterTurn(p.wrapped)
		},
	},
	RoundEnd: {
		name:    "Round End",
		autoEnd: true,
		enter: func(g TurnedGame, p *Phase) {
			g.OnBeforeRoundEnd(p)
		},
		exit: func(g TurnedGame, p *Phase) {
			g.OnRoundEnded(p)
		},
		next: func(g TurnedGame, p *Phase) *Phase {
			return g.NewPhase(RoundStartup)
		},
	},
}
