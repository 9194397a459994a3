// Package i18n renders user-facing text from embedded language bundles.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// Message keys.
const (
	KeyWelcome               = "welcome"
	KeyMainMenu              = "main_menu"
	KeyBtnAddGroup           = "btn_add_group"
	KeyBtnActiveGroups       = "btn_active_groups"
	KeyBtnStats              = "btn_stats"
	KeyBtnCheckSubscription  = "btn_check_subscription"
	KeyBtnLanguage           = "btn_language"
	KeyBtnSettings           = "btn_settings"
	KeyBtnBack               = "btn_back"
	KeyBtnYes                = "btn_yes"
	KeyBtnNo                 = "btn_no"
	KeyEnterGroupUsername    = "enter_group_username"
	KeyInvalidGroup          = "invalid_group"
	KeyBotNotAdmin           = "bot_not_admin"
	KeyEnterKeyword          = "enter_keyword"
	KeyEmptyKeyword          = "empty_keyword"
	KeyAddChannelQuestion    = "add_channel_question"
	KeyEnterChannelUsername  = "enter_channel_username"
	KeyInvalidChannel        = "invalid_channel"
	KeyChannelAddedSuccess   = "channel_added_success"
	KeySkipChannel           = "skip_channel"
	KeyRegistrationCancelled = "registration_cancelled"
	KeyErrorOccurred         = "error_occurred"
	KeyNoActiveGroups        = "no_active_groups"
	KeyActiveGroups          = "active_groups"
	KeyGroupItem             = "group_item"
	KeyStats                 = "stats"
	KeySubscribed            = "subscribed"
	KeyNotSubscribed         = "not_subscribed"
	KeyChangeLanguage        = "change_language"
	KeyLanguageChanged       = "language_changed"
	KeySettings              = "settings"
	KeySubscriptionWarning   = "subscription_warning"
	KeyNoUsernameWarning     = "no_username_warning"
	KeyScanNotRegistered     = "scan_not_registered"
	KeyScanReport            = "scan_report"
	KeyGroupOnly             = "group_only"
	KeyAdminOnly             = "admin_only"
	KeyAnswerYes             = "answer_yes"
	KeyAnswerNo              = "answer_no"
)

// Params are substituted into "{name}" placeholders.
type Params map[string]string

// Catalog holds one message bundle per supported language.
type Catalog struct {
	bundles  map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
	fallback string
}

// NewCatalog loads the embedded bundles. fallback must be one of them.
func NewCatalog(fallback string) (*Catalog, error) {
	entries, err := localesFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	c := &Catalog{bundles: make(map[string]map[string]string, len(entries))}
	for _, entry := range entries {
		raw, err := localesFS.ReadFile(path.Join("locales", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", entry.Name(), err)
		}
		bundle := map[string]string{}
		if err := yaml.Unmarshal(raw, &bundle); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", entry.Name(), err)
		}
		c.bundles[strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))] = bundle
	}

	if _, ok := c.bundles[fallback]; !ok {
		return nil, fmt.Errorf("fallback language %q has no bundle", fallback)
	}
	c.fallback = fallback

	// The fallback goes first so the matcher returns it when nothing fits.
	c.tags = append(c.tags, language.Make(fallback))
	for _, lang := range c.Languages() {
		if lang != fallback {
			c.tags = append(c.tags, language.Make(lang))
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Languages lists the supported language codes in sorted order.
func (c *Catalog) Languages() []string {
	langs := make([]string, 0, len(c.bundles))
	for lang := range c.bundles {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Supports reports whether lang has its own bundle.
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.bundles[lang]
	return ok
}

// Match maps a client language tag such as "en-US" or "pt-BR" to a
// supported language code, or the fallback.
func (c *Catalog) Match(tag string) string {
	if tag == "" {
		return c.fallback
	}
	if c.Supports(tag) {
		return tag
	}
	_, idx, confidence := c.matcher.Match(language.Make(tag))
	if confidence == language.No {
		return c.fallback
	}
	base, _ := c.tags[idx].Base()
	if c.Supports(base.String()) {
		return base.String()
	}
	return c.fallback
}

// Render returns the message for key in lang with params substituted.
// Missing keys fall back to the default language, then to the key itself.
func (c *Catalog) Render(lang, key string, params Params) string {
	text, ok := c.bundles[c.Match(lang)][key]
	if !ok {
		text, ok = c.bundles[c.fallback][key]
	}
	if !ok {
		return key
	}
	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// LanguageName is the native name of a supported language for menus.
func LanguageName(lang string) string {
	switch lang {
	case "ar":
		return "العربية"
	case "en":
		return "English"
	case "ru":
		return "Русский"
	case "fr":
		return "Français"
	default:
		return lang
	}
}
