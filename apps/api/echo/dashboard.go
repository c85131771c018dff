package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
	"github.com/tsacademy/academia/core/user"
)

const recentLimit = 5

type dashboardApi struct {
	deps *ServerDeps
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := dashboardApi{deps: deps}

	dg := g.Group("/dashboard", jwt)
	dg.GET("/admin", api.adminOverview, adminMiddleware())
}

type AdminOverview struct {
	StudentCount        int                   `json:"student_count"`
	TeacherCount        int                   `json:"teacher_count"`
	ClassCount          int                   `json:"class_count"`
	PendingFeeCount     int                   `json:"pending_fee_count"`
	RecentAnnouncements []school.Announcement `json:"recent_announcements"`
	RecentFees          []school.FeeRecord    `json:"recent_fees"`
}

// adminOverview aggregates the admin landing numbers. The queries are
// independent, so they run concurrently; the first failure cancels the
// rest.
func (api *dashboardApi) adminOverview(ctx echo.Context) error {
	var overview AdminOverview

	g, gctx := errgroup.WithContext(ctx.Request().Context())
	g.Go(func() error {
		n, err := api.deps.UserSvc.Count(gctx, user.QueryFilter{Role: user.RoleStudent})
		overview.StudentCount = n
		return errors.Wrap(err, "counting students")
	})
	g.Go(func() error {
		n, err := api.deps.UserSvc.Count(gctx, user.QueryFilter{Role: user.RoleTeacher})
		overview.TeacherCount = n
		return errors.Wrap(err, "counting teachers")
	})
	g.Go(func() error {
		n, err := api.deps.SchoolSvc.ClassCount(gctx, school.ClassFilter{})
		overview.ClassCount = n
		return errors.Wrap(err, "counting classes")
	})
	g.Go(func() error {
		n, err := api.deps.SchoolSvc.FeeCount(gctx, school.FeeFilter{Status: school.FeePending})
		overview.PendingFeeCount = n
		return errors.Wrap(err, "counting pending fees")
	})
	g.Go(func() error {
		anns, err := api.deps.SchoolSvc.Announcements(gctx, school.AnnouncementFilter{},
			core.QueryOptions{Ordering: []core.DBOrdering{core.ByDateDesc}, Limit: recentLimit})
		overview.RecentAnnouncements = anns
		return errors.Wrap(err, "querying recent announcements")
	})
	g.Go(func() error {
		fees, err := api.deps.SchoolSvc.Fees(gctx, school.FeeFilter{},
			core.QueryOptions{Ordering: []core.DBOrdering{core.ByDateDesc}, Limit: recentLimit})
		overview.RecentFees = fees
		return errors.Wrap(err, "querying recent fees")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if overview.RecentAnnouncements == nil {
		overview.RecentAnnouncements = []school.Announcement{}
	}
	if overview.RecentFees == nil {
		overview.RecentFees = []school.FeeRecord{}
	}
	return ctx.JSON(http.StatusOK, overview)
}
