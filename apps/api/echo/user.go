package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutoria/tutoria/core/user"
)

type loginData struct {
	Login    string `json:"login"` // email or name
	Password string `json:"password"`
}

func registerUserAPI(router *echo.Group, jwt echo.MiddlewareFunc, a *api) {
	g := router.Group("/users")

	g.POST("/login", a.login)
	g.POST("/token-refresh", a.refreshUserToken, jwt)
	g.GET("/me", a.me, jwt)
	g.POST("", a.createUser, jwt, adminMiddleware)
	g.GET("", a.queryUsers, jwt, adminMiddleware)
	g.GET("/:id", a.userDetail, jwt)
	g.DELETE("/:id", a.deleteUser, jwt, adminMiddleware)
}

func (a *api) login(ctx echo.Context) error {
	var data loginData
	if err := bind(ctx, &data); err != nil {
		return err
	}
	claims, err := a.auth.authenticate(ctx, data.Login, data.Password)
	if err != nil {
		return err
	}
	token, err := a.auth.generateToken(claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (a *api) refreshUserToken(ctx echo.Context) error {
	token, err := a.auth.refreshToken(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"token": token})
}

func (a *api) me(ctx echo.Context) error {
	usr, err := a.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (a *api) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := bind(ctx, &data); err != nil {
		return err
	}
	usr, err := a.users.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, usr)
}

// queryUsers lists every user, or the users of ?role=.
func (a *api) queryUsers(ctx echo.Context) error {
	var (
		users []user.User
		err   error
	)
	if role := ctx.QueryParam("role"); role != "" {
		users, err = a.users.QueryByRole(ctx.Request().Context(), role)
	} else {
		users, err = a.users.QueryAll(ctx.Request().Context())
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, users)
}

func (a *api) userDetail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if !(claims.IsAdmin || claims.Subject == id) {
		return errHttpForbidden
	}
	usr, err := a.users.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (a *api) deleteUser(ctx echo.Context) error {
	if err := a.users.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
