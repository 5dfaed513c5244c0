package game

import (
	"errors"
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
	"github.com/reversi-cards/reversi-server-go/internal/game/effects"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
	"github.com/reversi-cards/reversi-server-go/internal/game/targeting"
)

// turnStartAnchors is the firing order of anchor families at turn-start.
// Within a family anchors fire by chain priority.
var turnStartAnchors = []markers.Effect{
	markers.EffectBreeding,
	markers.EffectDragon,
	markers.EffectUltimateDestroyGod,
	markers.EffectHyperactive,
}

// turnStart runs the current player's turn-start bookkeeping once per
// logical turn.
func (r *resolution) turnStart() {
	if r.g.Cards.TurnStartDone || r.g.Board.Finished {
		return
	}
	r.emit(rules.EventTurnStarted, rules.Payload{Player: r.player})
	r.draw()

	r.apply(effects.TickBombs(r.g.Board.Grid, r.g.Cards.Markers, r.player, r.g.Board.TurnNumber))

	for _, effect := range turnStartAnchors {
		for _, m := range r.g.Cards.Markers.Owned(r.player, effect) {
			grid, reg := r.g.Board.Grid, r.g.Cards.Markers
			switch effect {
			case markers.EffectBreeding:
				r.apply(effects.Breed(grid, reg, m.ID, r.src, effects.TriggerTurnStart))
			case markers.EffectDragon:
				r.apply(effects.Dragon(grid, reg, m.ID, effects.TriggerTurnStart))
			case markers.EffectUltimateDestroyGod:
				r.apply(effects.DestroyGod(grid, reg, m.ID, effects.TriggerTurnStart))
			case markers.EffectHyperactive:
				r.apply(effects.Hyperactive(grid, reg, m.ID, r.src))
			}
		}
	}

	r.apply(effects.ExpireProtections(r.g.Board.Grid, r.g.Cards.Markers, r.player))
	r.g.Cards.TurnStartDone = true
}

// draw moves the top deck card to the current player's hand when there is
// room for it.
func (r *resolution) draw() {
	hand := r.g.Cards.Hands.Get(r.player)
	if len(r.g.Cards.Deck) == 0 || len(hand) >= r.e.rules.HandLimit {
		return
	}
	card := r.g.Cards.Deck[0]
	r.g.Cards.Deck = cloneStrings(r.g.Cards.Deck[1:])
	r.g.Cards.Hands.Set(r.player, append(cloneStrings(hand), card))
	r.emit(rules.EventCardDrawn, rules.Payload{Player: r.player, CardID: card})
}

// useCard pays for and activates the action's card, if any.
func (r *resolution) useCard() error {
	pending := r.g.Cards.Pending.Get(r.player)
	if r.a.CancelPending && !pending.Idle() {
		r.setPending(Pending{})
		r.emit(rules.EventPendingCleared, rules.Payload{
			Player:   r.player,
			CardID:   pending.CardID,
			CardType: string(pending.Card),
			Reason:   "cancelled",
		})
	}
	if r.a.UseCardID == "" {
		return nil
	}

	id := r.a.UseCardID
	hand := r.g.Cards.Hands.Get(r.player)
	idx := indexOf(hand, id)
	if idx < 0 {
		return rules.Reject(rules.ReasonCardUseFailed, "card %q is not in %s's hand", id, r.player)
	}
	def, ok := r.e.catalog.Lookup(id)
	if !ok {
		return rules.Reject(rules.ReasonCardUseFailed, "card %q is not in the catalog", id)
	}
	if current := r.g.Cards.Pending.Get(r.player); !current.Idle() {
		return rules.Reject(rules.ReasonCardUseFailed, "%s is still %s", current.CardID, current.Kind)
	}
	charge := r.g.Cards.Charge.Get(r.player)
	if charge < def.Cost {
		return rules.Reject(rules.ReasonCardUseFailed, "%s costs %d, %s has %d", id, def.Cost, r.player, charge)
	}

	r.g.Cards.Charge.Set(r.player, effects.ClampCharge(charge-def.Cost))
	if def.Cost > 0 {
		r.emit(rules.EventChargeSpent, rules.Payload{Player: r.player, CardID: id, Amount: def.Cost})
	}
	rest := make([]string, 0, len(hand)-1)
	rest = append(rest, hand[:idx]...)
	rest = append(rest, hand[idx+1:]...)
	r.g.Cards.Hands.Set(r.player, rest)
	r.g.Cards.Discard = append(cloneStrings(r.g.Cards.Discard), id)
	r.emit(rules.EventCardUsed, rules.Payload{Player: r.player, CardID: id, CardType: string(def.Type)})

	switch {
	case def.Type.Targeted():
		return r.resolveTarget(def.Type, id)
	case def.Type == cards.DoublePlace:
		extra := r.g.Cards.ExtraPlacesRemaining.Get(r.player) + 1
		r.g.Cards.ExtraPlacesRemaining.Set(r.player, extra)
		r.emit(rules.EventExtraPlaceGrant, rules.Payload{Player: r.player, CardID: id, Amount: 1})
	default:
		r.setPending(Pending{Kind: PendingAwaitingPlacement, Card: def.Type, CardID: id})
		r.emit(rules.EventPendingSet, rules.Payload{Player: r.player, CardID: id, CardType: string(def.Type)})
	}
	return nil
}

// resolveTarget runs a targeted card from AwaitingTarget back to Idle.
func (r *resolution) resolveTarget(t cards.Type, id string) error {
	req, ok := targeting.RequirementFor(t)
	if !ok {
		return rules.Reject(rules.ReasonCardUseFailed, "%s has no target requirement", t)
	}
	r.setPending(Pending{Kind: PendingAwaitingTarget, Card: t, CardID: id})
	r.emit(rules.EventPendingSet, rules.Payload{Player: r.player, CardID: id, CardType: string(t)})

	sel := &targeting.TargetSelection{Target: r.a.Target(req.Field), Requirement: req}
	if err := targeting.NewTargetValidator(r).ValidateTargetSelection(sel, r.player); err != nil {
		if errors.Is(err, targeting.ErrMissingTarget) {
			return rules.Wrap(rules.ReasonMissingRequiredTarget, err, fmt.Sprintf("%s requires %s", t, req.Field))
		}
		return rules.Wrap(rules.ReasonCardUseFailed, err, fmt.Sprintf("%s cannot target %s", t, sel.Target))
	}

	target := *sel.Target
	grid, reg := r.g.Board.Grid, r.g.Cards.Markers
	switch t {
	case cards.DestroyOneStone:
		r.apply(effects.DestroyStone(grid, reg, target))
	case cards.SwapWithEnemy:
		r.apply(effects.SwapStone(grid, reg, target, r.player))
	case cards.TemptWill:
		r.apply(effects.Tempt(grid, reg, target, r.player))
	case cards.InheritWill:
		markerID, seq := r.nextMarkerID()
		r.apply(effects.Inherit(grid, reg, markerID, target, r.player, seq))
	}
	r.emit(rules.EventTargetResolved, rules.Payload{Player: r.player, CardID: id, CardType: string(t), Pos: &target})

	r.setPending(Pending{})
	r.emit(rules.EventPendingCleared, rules.Payload{Player: r.player, CardID: id, CardType: string(t), Reason: "resolved"})
	return nil
}

// place resolves a placement: legality and primary flips, the post-flip
// hooks, then the marker the pending card puts on the new stone.
func (r *resolution) place() error {
	p, ok := r.a.Pos()
	if !ok {
		return rules.Reject(rules.ReasonInvalidAction, "placement without a cell")
	}
	pending := r.g.Cards.Pending.Get(r.player)
	modifier, _ := pending.Modifier()

	grid := r.g.Board.Grid
	if grid.At(p) != board.Empty {
		return rules.Reject(rules.ReasonIllegalMove, "%s is occupied", p)
	}
	flips := board.ChainFlips(&grid, p, r.player, r.g.Cards.Markers.FlipBlockers())
	if len(flips) == 0 && modifier != cards.FreePlacement {
		return rules.Reject(rules.ReasonIllegalMove, "%s flips nothing for %s", p, r.player)
	}

	out, held := effects.Place(grid, r.g.Cards.Markers, p, r.player, flips)
	r.apply(out)
	if modifier == cards.FreePlacement {
		r.emit(rules.EventFreePlaceUsed, rules.Payload{Player: r.player, CardID: pending.CardID, Pos: &p})
	}

	r.enter(rules.PhasePostFlip)
	flipped := held
	if modifier == cards.ChainWill {
		chained, chainHeld := effects.ChainWill(r.g.Board.Grid, r.g.Cards.Markers, held, r.player, r.src)
		r.apply(chained)
		flipped = append(append([]board.Pos(nil), held...), chainHeld...)
	}
	count := 0
	for _, c := range flipped {
		if r.g.Board.Grid.At(c) == r.player {
			count++
		}
	}
	r.credit(count, modifier, pending.CardID)

	r.enter(rules.PhaseMarkerCreation)
	r.createMarker(p, modifier)

	if modifier != "" {
		r.setPending(Pending{})
		r.emit(rules.EventPendingCleared, rules.Payload{
			Player:   r.player,
			CardID:   pending.CardID,
			CardType: string(modifier),
			Reason:   "consumed",
		})
	}
	r.g.Board.ConsecutivePasses = 0
	return nil
}

// credit applies the charge, steal and plunder hooks for count flips.
func (r *resolution) credit(count int, modifier cards.Type, cardID string) {
	multiplier := effects.BaseMultiplier
	switch modifier {
	case cards.GoldStone:
		multiplier = effects.GoldMultiplier
	case cards.SilverStone:
		multiplier = effects.SilverMultiplier
	}
	before := r.g.Cards.Charge.Get(r.player)
	after := effects.ClampCharge(before + effects.ChargeCredit(count, multiplier))
	r.g.Cards.Charge.Set(r.player, after)
	if after != before {
		r.emit(rules.EventChargeGained, rules.Payload{Player: r.player, Amount: after - before})
	}

	opponent := r.player.Opponent()
	switch modifier {
	case cards.StealCard:
		own, opp, moved := effects.Steal(r.g.Cards.Hands.Get(r.player), r.g.Cards.Hands.Get(opponent), count, r.e.rules.HandLimit)
		if len(moved) == 0 {
			return
		}
		r.g.Cards.Hands.Set(r.player, own)
		r.g.Cards.Hands.Set(opponent, opp)
		r.emit(rules.EventCardsStolen, rules.Payload{Player: r.player, CardID: cardID, Cards: moved, Amount: len(moved)})
	case cards.PlunderWill:
		own, opp, moved := effects.Plunder(r.g.Cards.Charge.Get(r.player), r.g.Cards.Charge.Get(opponent), count)
		if moved == 0 {
			return
		}
		r.g.Cards.Charge.Set(r.player, effects.ClampCharge(own))
		r.g.Cards.Charge.Set(opponent, effects.ClampCharge(opp))
		r.emit(rules.EventChargePlundered, rules.Payload{Player: r.player, CardID: cardID, Amount: moved})
	}
}

// placementEffects maps the cards that mark the placed stone to their marker.
var placementEffects = map[cards.Type]markers.Effect{
	cards.ProtectedNextStone:    markers.EffectProtected,
	cards.PermaProtectNextStone: markers.EffectPermaProtected,
	cards.TimeBomb:              markers.EffectTimeBomb,
	cards.BreedingWill:          markers.EffectBreeding,
	cards.RegenWill:             markers.EffectRegen,
	cards.UltimateReverseDragon: markers.EffectDragon,
	cards.UltimateDestroyGod:    markers.EffectUltimateDestroyGod,
	cards.HyperactiveWill:       markers.EffectHyperactive,
}

// defaultCountdowns apply when the catalog entry has no countdown.
var defaultCountdowns = map[markers.Effect]int{
	markers.EffectTimeBomb:           3,
	markers.EffectBreeding:           3,
	markers.EffectDragon:             5,
	markers.EffectUltimateDestroyGod: 3,
}

// createMarker puts the modifier's marker on the placed stone and runs its
// immediate trigger.
func (r *resolution) createMarker(p board.Pos, modifier cards.Type) {
	effect, ok := placementEffects[modifier]
	if !ok {
		return
	}
	id, seq := r.nextMarkerID()
	grid, reg := r.g.Board.Grid, r.g.Cards.Markers

	switch effect {
	case markers.EffectProtected, markers.EffectPermaProtected:
		r.apply(effects.Protect(grid, reg, id, p, r.player, effect == markers.EffectPermaProtected, seq))
		return
	}

	m := markers.Marker{
		ID:      id,
		Row:     p.Row,
		Col:     p.Col,
		Effect:  effect,
		Owner:   r.player,
		Payload: markers.Payload{OwnerColor: r.player, ChainPriority: seq},
	}
	if cd, timed := defaultCountdowns[effect]; timed {
		if def, ok := r.e.catalog.Definition(modifier); ok && def.Countdown > 0 {
			cd = def.Countdown
		}
		m.Payload.Countdown = cd
	}
	switch effect {
	case markers.EffectTimeBomb:
		m.Payload.PlacedTurn = r.g.Board.TurnNumber
	case markers.EffectRegen:
		m.Payload.RegenRemaining = 1
	}
	r.apply(effects.Attach(grid, reg, m))

	grid, reg = r.g.Board.Grid, r.g.Cards.Markers
	switch effect {
	case markers.EffectBreeding:
		r.apply(effects.Breed(grid, reg, id, r.src, effects.TriggerPlacement))
	case markers.EffectDragon:
		r.apply(effects.Dragon(grid, reg, id, effects.TriggerPlacement))
	case markers.EffectUltimateDestroyGod:
		r.apply(effects.DestroyGod(grid, reg, id, effects.TriggerPlacement))
	}
}

// pass is legal only when the player has no legal placement.
func (r *resolution) pass() error {
	if board.HasLegalMove(&r.g.Board.Grid, r.player, r.g.Cards.Markers.FlipBlockers()) {
		return rules.Reject(rules.ReasonIllegalMove, "%s has a legal placement and cannot pass", r.player)
	}
	r.g.Board.ConsecutivePasses++
	r.g.Cards.ExtraPlacesRemaining.Set(r.player, 0)
	r.emit(rules.EventPassed, rules.Payload{Player: r.player})
	return nil
}

// advanceTurn hands the turn over unless an extra placement is due, then
// checks for the end of the game.
func (r *resolution) advanceTurn() {
	b := &r.g.Board
	blockers := r.g.Cards.Markers.FlipBlockers()
	if r.a.Type == action.TypePlace {
		extra := r.g.Cards.ExtraPlacesRemaining.Get(r.player)
		if extra > 0 && board.HasLegalMove(&b.Grid, r.player, blockers) {
			r.g.Cards.ExtraPlacesRemaining.Set(r.player, extra-1)
			return
		}
	}

	r.g.Cards.ExtraPlacesRemaining.Set(r.player, 0)
	r.emit(rules.EventTurnEnded, rules.Payload{Player: r.player})
	b.CurrentPlayer = r.player.Opponent()
	b.TurnNumber++
	r.g.Cards.TurnStartDone = false
	r.checkEnd()
}

func (r *resolution) checkEnd() {
	b := &r.g.Board
	blockers := r.g.Cards.Markers.FlipBlockers()
	var reason string
	switch {
	case b.Grid.Full():
		reason = "board full"
	case b.ConsecutivePasses >= 2:
		reason = "both players passed"
	case !board.HasLegalMove(&b.Grid, board.Black, blockers) && !board.HasLegalMove(&b.Grid, board.White, blockers):
		reason = "no legal moves"
	default:
		return
	}

	black, white := b.Grid.Count(board.Black), b.Grid.Count(board.White)
	winner := board.Empty
	switch {
	case black > white:
		winner = board.Black
	case white > black:
		winner = board.White
	}
	b.Finished = true
	b.Winner = winner
	r.emit(rules.EventGameEnded, rules.Payload{Winner: winner, Black: black, White: white, Reason: reason})
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
