package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/turnsync/internal/mirror"
	"github.com/pterm/pterm"
)

// shortID keeps player ids readable in the terminal.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// phasePanel shows the active phase, or the announced one with its countdown.
func phasePanel(m *mirror.Mirror, self uuid.UUID, now time.Time) string {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)

	var body strings.Builder
	cur, ok := m.CurrentPhase()
	if !ok {
		body.WriteString(pterm.Gray("waiting for the match to start"))
		return pbox.WithTitle(pterm.LightYellow("|PHASE|")).WithTitleTopCenter().Sprint(body.String())
	}

	fmt.Fprintf(&body, "Round %d  %s\n", m.RoundNumber(), pterm.LightCyan(cur.Name))
	if cur.Player != uuid.Nil {
		if cur.Player == self {
			body.WriteString(pterm.LightGreen("Your turn, press Enter when done\n"))
		} else {
			fmt.Fprintf(&body, "Turn of %s\n", shortID(cur.Player))
		}
	}
	if m.Outstanding() {
		next, _ := m.PendingPhase()
		left := m.Countdown(now)
		fmt.Fprintf(&body, "Next: %s in %s", pterm.LightYellow(next.Name), pterm.LightYellow(left.Round(100*time.Millisecond)))
	}
	return pbox.WithTitle(pterm.LightYellow("|PHASE|")).WithTitleTopCenter().Sprint(body.String())
}

// turnOrderPanel lists the seats, marking the current player and self.
func turnOrderPanel(m *mirror.Mirror, self uuid.UUID) string {
	pbox := pterm.DefaultBox.WithLeftPadding(2).WithRightPadding(2)
	current, inTurn := m.CurrentPlayer()

	var lines []string
	for i, id := range m.TurnOrder() {
		line := fmt.Sprintf("%d. %s", i+1, shortID(id))
		if id == self {
			line += " (you)"
		}
		if inTurn && id == current {
			line = pterm.LightGreen("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, pterm.Gray("no turn order yet"))
	}
	return pbox.WithTitle("|TURN ORDER|").WithTitleTopLeft().Sprint(strings.Join(lines, "\n"))
}

// render draws the whole dashboard into area.
func render(area *pterm.AreaPrinter, m *mirror.Mirror, self uuid.UUID, now time.Time) {
	s, err := pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{{Data: phasePanel(m, self, now)}, {Data: turnOrderPanel(m, self)}},
	}).Srender()
	if err != nil {
		return
	}
	area.Update(s)
}
