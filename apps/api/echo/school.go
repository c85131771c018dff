package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/school"
	"github.com/tsacademy/academia/core/user"
)

type schoolApi struct {
	deps *ServerDeps
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *ServerDeps) {
	api := schoolApi{deps: deps}

	// classes
	cg := g.Group("/classes", jwt)
	cg.POST("", api.createClass, adminMiddleware())
	cg.GET("", api.queryClasses, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	cg.GET("/count", api.countClasses, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	cg.GET("/:id", api.retrieveClass, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	cg.DELETE("/:id", api.destroyClass, adminMiddleware())

	// attendance
	ag := g.Group("/attendance", jwt)
	ag.POST("", api.submitAttendance, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	ag.GET("", api.queryAttendance)
	ag.GET("/count", api.countAttendance)
	ag.GET("/export", api.exportAttendance, roleMiddleware(user.RoleAdmin, user.RoleTeacher))
	ag.DELETE("/:id", api.destroyAttendance, adminMiddleware())

	// fees
	fg := g.Group("/fees", jwt)
	fg.POST("", api.createFee, adminMiddleware())
	fg.GET("", api.queryFees)
	fg.GET("/count", api.countFees)
	fg.DELETE("/:id", api.destroyFee, adminMiddleware())

	// announcements
	ng := g.Group("/announcements", jwt)
	ng.POST("", api.publishAnnouncement, adminMiddleware())
	ng.GET("", api.queryAnnouncements)
	ng.GET("/count", api.countAnnouncements, adminMiddleware())
	ng.DELETE("/:id", api.destroyAnnouncement, adminMiddleware())
}

// Classes

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	cls, err := api.deps.SchoolSvc.CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

// queryClasses scopes teachers down to the classes they teach; admins see
// everything and may filter freely.
func (api *schoolApi) queryClasses(ctx echo.Context) error {
	filter := new(school.ClassFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Class{})
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsTeacher {
		filter.TeacherID = claims.Subject
	}
	qo := new(QueryOpts)
	qo.Bind(ctx, "created_at", "name")

	classes, err := api.deps.SchoolSvc.Classes(ctx.Request().Context(), *filter, qo.Opts)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) countClasses(ctx echo.Context) error {
	filter := new(school.ClassFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, CountResponse{})
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsTeacher {
		filter.TeacherID = claims.Subject
	}

	count, err := api.deps.SchoolSvc.ClassCount(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "counting classes")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.deps.SchoolSvc.GetClass(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting class")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsTeacher && cls.TeacherID != claims.Subject {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, cls)
}

// destroyClass is idempotent; attendance and fee records referencing the
// class are left in place.
func (api *schoolApi) destroyClass(ctx echo.Context) error {
	if _, err := api.deps.SchoolSvc.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Attendance

func (api *schoolApi) submitAttendance(ctx echo.Context) error {
	var data school.AttendanceSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceSheet")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsTeacher {
		if err := api.checkClassOwnership(ctx, data.ClassID, claims.Subject); err != nil {
			return err
		}
	}

	n, err := api.deps.SchoolSvc.SubmitAttendance(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting attendance")
	}
	return ctx.JSON(http.StatusCreated, CountResponse{Count: n})
}

func (api *schoolApi) queryAttendance(ctx echo.Context) error {
	filter := new(school.AttendanceFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.AttendanceRecord{})
	}
	if err := api.scopeAttendanceFilter(ctx, filter); err != nil {
		return err
	}
	qo := new(QueryOpts)
	qo.Bind(ctx, "date")

	recs, err := api.deps.SchoolSvc.Attendance(ctx.Request().Context(), *filter, qo.Opts)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if recs == nil {
		recs = []school.AttendanceRecord{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *schoolApi) countAttendance(ctx echo.Context) error {
	filter := new(school.AttendanceFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, CountResponse{})
	}
	if err := api.scopeAttendanceFilter(ctx, filter); err != nil {
		return err
	}

	count, err := api.deps.SchoolSvc.AttendanceCount(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "counting attendance")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *schoolApi) exportAttendance(ctx echo.Context) error {
	filter := new(school.AttendanceFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to AttendanceFilter")
	}
	if err := api.scopeAttendanceFilter(ctx, filter); err != nil {
		return err
	}

	f, err := api.deps.SchoolSvc.ExportAttendance(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "exporting attendance")
	}

	var buf bytes.Buffer
	if err = f.Write(&buf); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="attendance.xlsx"`)
	return ctx.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (api *schoolApi) destroyAttendance(ctx echo.Context) error {
	if _, err := api.deps.SchoolSvc.DeleteAttendanceRecord(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// scopeAttendanceFilter narrows the filter to what the caller may see:
// students only their own records, teachers only records of classes they
// teach. Admins pass through untouched.
func (api *schoolApi) scopeAttendanceFilter(ctx echo.Context, filter *school.AttendanceFilter) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch {
	case claims.IsAdmin:
	case claims.IsStudent:
		filter.StudentID = claims.Subject
	case claims.IsTeacher:
		if filter.ClassID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "this field is required"})
		}
		if err := api.checkClassOwnership(ctx, filter.ClassID, claims.Subject); err != nil {
			return err
		}
	default: // unrecognized role: no access, not default access
		return errHttpForbidden
	}
	return nil
}

// checkClassOwnership hides classes the teacher does not own behind a 404.
func (api *schoolApi) checkClassOwnership(ctx echo.Context, classID, teacherID string) error {
	cls, err := api.deps.SchoolSvc.GetClass(ctx.Request().Context(), classID)
	if err != nil {
		if errors.Cause(err) == school.ErrClassNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting class")
	}
	if cls.TeacherID != teacherID {
		return errHttpNotFound
	}
	return nil
}

// Fees

func (api *schoolApi) createFee(ctx echo.Context) error {
	var data school.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	fee, err := api.deps.SchoolSvc.CreateFee(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee record")
	}
	return ctx.JSON(http.StatusCreated, fee)
}

// queryFees is read-only for teachers; students are pinned to their own
// records.
func (api *schoolApi) queryFees(ctx echo.Context) error {
	filter := new(school.FeeFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.FeeRecord{})
	}
	if err := api.scopeFeeFilter(ctx, filter); err != nil {
		return err
	}
	qo := new(QueryOpts)
	qo.Bind(ctx, "date")

	fees, err := api.deps.SchoolSvc.Fees(ctx.Request().Context(), *filter, qo.Opts)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []school.FeeRecord{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *schoolApi) countFees(ctx echo.Context) error {
	filter := new(school.FeeFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, CountResponse{})
	}
	if err := api.scopeFeeFilter(ctx, filter); err != nil {
		return err
	}

	count, err := api.deps.SchoolSvc.FeeCount(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "counting fees")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

// scopeFeeFilter pins students to their own fee records. Teachers and
// admins may read all of them; anything else is rejected.
func (api *schoolApi) scopeFeeFilter(ctx echo.Context, filter *school.FeeFilter) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	switch {
	case claims.IsAdmin, claims.IsTeacher:
	case claims.IsStudent:
		filter.StudentID = claims.Subject
	default: // unrecognized role: no access, not default access
		return errHttpForbidden
	}
	return nil
}

func (api *schoolApi) destroyFee(ctx echo.Context) error {
	if _, err := api.deps.SchoolSvc.DeleteFee(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Announcements

func (api *schoolApi) publishAnnouncement(ctx echo.Context) error {
	var data school.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.deps.Validate); err != nil {
		return err
	}

	ann, err := api.deps.SchoolSvc.PublishAnnouncement(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "publishing announcement")
	}
	return ctx.JSON(http.StatusCreated, ann)
}

// queryAnnouncements is visible to every authenticated role; the bulletin
// board is global. Most recent first by default.
func (api *schoolApi) queryAnnouncements(ctx echo.Context) error {
	filter := new(school.AnnouncementFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.Announcement{})
	}
	qo := new(QueryOpts)
	qo.Bind(ctx, "date")
	if len(qo.Opts.Ordering) == 0 {
		qo.Opts.Ordering = []core.DBOrdering{core.ByDateDesc}
	}

	anns, err := api.deps.SchoolSvc.Announcements(ctx.Request().Context(), *filter, qo.Opts)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []school.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (api *schoolApi) countAnnouncements(ctx echo.Context) error {
	filter := new(school.AnnouncementFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, CountResponse{})
	}

	count, err := api.deps.SchoolSvc.AnnouncementCount(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "counting announcements")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *schoolApi) destroyAnnouncement(ctx echo.Context) error {
	if _, err := api.deps.SchoolSvc.DeleteAnnouncement(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
