// Package http provides HTTP handlers and middleware for the on-call API.
//
// The router exposes the following endpoints:
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id}: user
//     management exchanging the `userDTO` payload defined in user_handler.go.
//     Creation carries a `roster_id` and requires administrator rights on
//     that roster; the new user joins it immediately.
//   - POST /users/{id}/calendar_token: returns the user's calendar feed
//     token, generating one on first request.
//   - GET /rosters, POST /rosters, GET /rosters/{id}, PUT /rosters/{id},
//     DELETE /rosters/{id}: roster management. The single-roster view
//     includes the current on-call holder and the date the next generated
//     rotation would begin.
//   - GET /rosters/{id}/members, POST /rosters/{id}/members,
//     PUT /rosters/{id}/members/{userID}, DELETE /rosters/{id}/members/{userID}:
//     membership management, administrators only.
//   - GET /rosters/{id}/assignments, POST /rosters/{id}/assignments,
//     GET /assignments/{id}, PUT /assignments/{id}, DELETE /assignments/{id}:
//     assignment management exchanging the `assignmentDTO` payload defined
//     in assignment_handler.go. Updates carry the record version last read
//     and fail with 409 when it has moved.
//   - GET /rosters/{id}/rotation, POST /rosters/{id}/rotation: rotation
//     planning. GET reports the suggested start date; POST generates and
//     stores a weekly rotation.
//   - GET /feeds/{token}/{roster}.ics: the iCalendar feed. This is the only
//     route served without the bearer actor header; the token in the path is
//     the credential.
//
// Request/response DTOs live alongside their respective handlers so tests
// and documentation share the same ground truth.
package http
