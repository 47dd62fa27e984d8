// Package dataapi serves the todo models over an RPC style CRUD api.
//
// Requests address a model and an operation, for example
//
//	GET    /api/model/todoList/findMany?q={"orderBy":{"createdAt":"desc"}}
//	POST   /api/model/todo/create        {"data":{"title":"milk","listId":"..."}}
//	PUT    /api/model/todo/update        {"where":{"id":"..."},"data":{"done":true}}
//	DELETE /api/model/todoList/delete?q={"where":{"id":"..."}}
//
// Every call runs through a Client obtained from Engine.Enhance, which applies the
// row level policies of each model for the given auth user.
package dataapi
