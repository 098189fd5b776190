package templates

import (
	"fmt"
	"html"
)

// RenderCode generates branded HTML for the email verification code message
func RenderCode(code string) string {
	safeCode := html.EscapeString(code)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Código de verificação</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f4f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0f766e 0%%, #134e4a 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #374151; line-height: 1.6; font-size: 15px; text-align: center; }
    .code { display: inline-block; margin: 20px 0; padding: 16px 32px; font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #0f766e; background-color: #f0fdfa; border-radius: 8px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(0,0,0,0.08); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>Placa Chat</h1>
    </div>
    <div class="content">
      <p>Use o código abaixo para confirmar o seu e-mail:</p>
      <div class="code">%s</div>
      <p>Este código expira em 24 horas. Se você não criou uma conta, ignore esta mensagem.</p>
    </div>
    <div class="footer">
      <p>&copy; Placa Chat</p>
    </div>
  </div>
</body>
</html>`, safeCode)
}
