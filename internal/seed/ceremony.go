package seed

import (
	"context"

	"nv/go-nv/internal/mnemonic"
)

const (
	KeepQuestion     = "Keep mnemonic?"
	LongerSeedNote   = "Longer mined seed is not more secure."
	SaveAdvice       = "Save this mnemonic. It is impossible to brute-force the password without this mnemonic!"
	BruteForceAdvice = "In contrary it is possible to brute-force this mnemonic by design, if you have the password."
)

// UI is the part of the terminal a ceremony talks to.
type UI interface {
	Confirm(question string) (bool, error)
	Notify(line string)
}

// Ceremony mints mnemonics until the user keeps one.
func (p *Pipeline) Ceremony(ctx context.Context, password string, ui UI) (Minted, error) {
	discarded := 0
	for {
		if discarded == 2 {
			ui.Notify(LongerSeedNote)
		}
		minted, err := p.Mint(ctx, password)
		if err != nil {
			return Minted{}, err
		}
		ui.Notify("Mnemonic: " + mnemonic.Display(minted.Mnemonic))
		keep, err := ui.Confirm(KeepQuestion)
		if err != nil {
			return Minted{}, err
		}
		if keep {
			ui.Notify(SaveAdvice)
			ui.Notify(BruteForceAdvice)
			for _, notice := range p.params.RecoveryNotices() {
				ui.Notify(notice)
			}
			return minted, nil
		}
		p.logger.Debug("mnemonic discarded", "discarded", discarded+1)
		discarded++
	}
}
