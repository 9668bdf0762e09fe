package routes

import (
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/rbac"
)

// Deps are the collaborators data-backed pages need.
type Deps struct {
	Members pages.MemberLister
}

var (
	memberArea   = gate.RequireVerifiedAndComplete()
	moderation   = gate.RequireRole(gate.MessagingRoleGate, rbac.RoleModerator, rbac.RoleAdmin, rbac.RoleSuperAdmin)
	adminConsole = gate.RequireAdminConsole(rbac.RoleAdmin, rbac.RoleSuperAdmin)
	siteSettings = gate.RequireAdminConsole(rbac.RoleSuperAdmin)
)

// Table returns the site's route table.
func Table(deps Deps) []Descriptor {
	return []Descriptor{
		// public
		{Name: HomeRoute, Pattern: ExactPath("/home"), Example: "/home", TitleKey: "page.home.title", Page: pages.Home},
		{Name: "about", Pattern: ExactPath("/about"), Example: "/about", TitleKey: "page.about.title", Page: pages.Titled("page.about.title")},
		{Name: "news", Pattern: ExactPath("/news"), Example: "/news", TitleKey: "page.news.title", Page: pages.Titled("page.news.title")},
		{Name: "news-article", Pattern: PrefixCapture("/news/", "slug"), Example: "/news/launch-day", TitleKey: "page.news_article.title", Page: pages.Captured("page.news_article.title", "slug")},
		{Name: "announcements", Pattern: ExactPath("/announcements"), Example: "/announcements", TitleKey: "page.announcements.title", Page: pages.Titled("page.announcements.title")},
		{Name: "marketplace", Pattern: ExactPath("/marketplace"), Example: "/marketplace", TitleKey: "page.marketplace.title", Page: pages.Titled("page.marketplace.title")},
		{Name: "marketplace-item", Pattern: PrefixCapture("/marketplace/", "id"), Example: "/marketplace/lst-42", TitleKey: "page.marketplace_item.title", Page: pages.Captured("page.marketplace_item.title", "id")},
		{Name: "public-profile", Pattern: PrefixCapture("/u/", "username"), Example: "/u/ayu", TitleKey: "page.public_profile.title", Page: pages.Captured("page.public_profile.title", "username")},
		{Name: "terms", Pattern: ExactPath("/legal/terms"), Example: "/legal/terms", TitleKey: "page.terms.title", Page: pages.Titled("page.terms.title")},
		{Name: "privacy", Pattern: ExactPath("/legal/privacy"), Example: "/legal/privacy", TitleKey: "page.privacy.title", Page: pages.Titled("page.privacy.title")},

		// auth
		{Name: "signin", Pattern: ExactPath("/signin"), Example: "/signin", TitleKey: "page.signin.title", Page: pages.SignIn, AuthPage: true},
		{Name: "signup", Pattern: ExactPath("/signup"), Example: "/signup", TitleKey: "page.signup.title", Page: pages.Titled("page.signup.title"), AuthPage: true},
		{Name: "forgot-password", Pattern: ExactPath("/forgot-password"), Example: "/forgot-password", TitleKey: "page.forgot_password.title", Page: pages.Titled("page.forgot_password.title"), AuthPage: true},
		{Name: "reset-password", Pattern: ExactPath("/reset-password"), Example: "/reset-password", TitleKey: "page.reset_password.title", Page: pages.Titled("page.reset_password.title"), AuthPage: true},

		// member area
		{Name: "member-dashboard", Pattern: ExactPath("/member/dashboard"), Example: "/member/dashboard", TitleKey: "page.member_dashboard.title", Page: pages.Dashboard, Policy: memberArea},
		{Name: "member-profile", Pattern: ExactPath("/member/profile"), Example: "/member/profile", TitleKey: "page.member_profile.title", Page: pages.Titled("page.member_profile.title"), Policy: memberArea},
		{Name: "member-settings", Pattern: ExactPath("/member/settings"), Example: "/member/settings", TitleKey: "page.member_settings.title", Page: pages.Titled("page.member_settings.title"), Policy: memberArea},
		// the verification and completion pages must not require what they fix
		{Name: "verify-email", Pattern: ExactPath("/member/verify-email"), Example: "/member/verify-email", TitleKey: "page.verify_email.title", Page: pages.VerifyEmail, Policy: gate.RequireSession()},
		{Name: "complete-profile", Pattern: ExactPath("/member/complete-profile"), Example: "/member/complete-profile", TitleKey: "page.complete_profile.title", Page: pages.CompleteProfile, Policy: gate.RequireVerified()},

		// moderation
		{Name: "moderator-queue", Pattern: ExactPath("/moderator/queue"), Example: "/moderator/queue", TitleKey: "page.moderator_queue.title", Page: pages.Titled("page.moderator_queue.title"), Policy: moderation},

		// admin console
		{Name: "admin-news-edit", Pattern: PrefixSuffixCapture("/admin/news/", "id", "/edit"), Example: "/admin/news/abc/edit", TitleKey: "page.admin_news_edit.title", Page: pages.Captured("page.admin_news_edit.title", "id"), Policy: adminConsole},
		{Name: "admin-control", Pattern: ExactPath("/admin/control"), Example: "/admin/control", TitleKey: "page.admin_control.title", Page: pages.Titled("page.admin_control.title"), Policy: adminConsole},
		{Name: "admin-news", Pattern: ExactPath("/admin/news"), Example: "/admin/news", TitleKey: "page.admin_news.title", Page: pages.Titled("page.admin_news.title"), Policy: adminConsole},
		{Name: "admin-news-new", Pattern: ExactPath("/admin/news/new"), Example: "/admin/news/new", TitleKey: "page.admin_news_new.title", Page: pages.Titled("page.admin_news_new.title"), Policy: adminConsole},
		{Name: "admin-members", Pattern: ExactPath("/admin/members"), Example: "/admin/members", TitleKey: "page.admin_members.title", Page: pages.AdminMembers(deps.Members), Policy: adminConsole},
		{Name: "admin-settings", Pattern: ExactPath("/admin/settings"), Example: "/admin/settings", TitleKey: "page.admin_settings.title", Page: pages.Titled("page.admin_settings.title"), Policy: siteSettings},
	}
}
