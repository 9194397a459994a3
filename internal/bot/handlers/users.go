package handlers

import (
	"context"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/gatekeeper/internal/database"
	"github.com/edgard/gatekeeper/internal/registration"
)

// userLanguage returns the stored language of user, or the best match for
// their client language when no profile exists.
func (d HandlerDeps) userLanguage(ctx context.Context, user models.User) string {
	profile, err := d.Store.GetUserProfile(ctx, user.ID)
	if err == nil && profile != nil && d.Catalog.Supports(profile.Language) {
		return profile.Language
	}
	return d.Catalog.Match(user.LanguageCode)
}

// touchProfile creates the profile of user or refreshes its names.
// An existing language choice and subscription flag are kept.
func (d HandlerDeps) touchProfile(ctx context.Context, user models.User) error {
	return d.Store.UpsertUserProfile(ctx, &database.UserProfile{
		UserID:    user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		Language:  d.Catalog.Match(user.LanguageCode),
	})
}

// outcomeReply renders a registration step together with the keyboard the
// next state expects.
func (d HandlerDeps) outcomeReply(lang string, out registration.Outcome) reply {
	if out.Key == "" {
		return mainMenu(d.Catalog, lang)
	}
	r := reply{text: d.Catalog.Render(lang, out.Key, out.Params)}
	switch out.State {
	case registration.AwaitingChannelChoice:
		r.markup = channelChoiceKeyboard(d.Catalog, lang)
	case registration.Idle:
		r.markup = mainMenuKeyboard(d.Catalog, lang)
	}
	return r
}
