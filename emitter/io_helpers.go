package emitter

// printIntHelper converts the signed decimal value in r15 to ASCII and
// writes it to stdout followed by a newline. It saves and restores every
// virtual register's physical home (rax, rbx, rcx, rdx, rsi, rdi, r8, r9)
// plus rbp, using r12-r14 as local scratch.
const printIntHelper = `
print_int:
    push rbp
    push rax
    push rbx
    push rcx
    push rdx
    push rsi
    push rdi
    push r8
    push r9
    push r12
    push r13
    push r14

    mov rax, r15
    xor rbx, rbx
    cmp rax, 0
    jge print_int_positive
    mov rbx, 1
    neg rax
print_int_positive:
    mov rcx, digit_buffer + 31
    mov r12, 10
    mov r13, rcx
    cmp rax, 0
    jne print_int_loop
    dec r13
    mov byte [r13], '0'
    jmp print_int_after_digits
print_int_loop:
    cmp rax, 0
    je print_int_after_digits
    xor rdx, rdx
    div r12
    add dl, '0'
    dec r13
    mov [r13], dl
    jmp print_int_loop
print_int_after_digits:
    cmp rbx, 0
    je print_int_no_sign
    dec r13
    mov byte [r13], '-'
print_int_no_sign:
    mov r14, rcx
    sub r14, r13
    mov byte [rcx], 10
    mov rax, 1
    mov rdi, 1
    mov rsi, r13
    mov rdx, r14
    inc rdx
    syscall

    pop r14
    pop r13
    pop r12
    pop r9
    pop r8
    pop rdi
    pop rsi
    pop rdx
    pop rcx
    pop rbx
    pop rax
    pop rbp
    ret
`

// readIntHelper reads up to 32 bytes from stdin, parses a signed decimal
// integer, and returns it in r15. It preserves every virtual register's
// physical home the same way printIntHelper does.
const readIntHelper = `
read_int:
    push rbp
    push rax
    push rbx
    push rcx
    push rdx
    push rsi
    push rdi
    push r8
    push r9
    push r10
    push r12
    push r13

    mov rax, 0
    mov rdi, 0
    mov rsi, input_buffer
    mov rdx, 32
    syscall

    mov rcx, input_buffer
    mov r8, rax
    xor r9, r9
    xor r15, r15

    cmp r8, 0
    je read_int_done

    mov r12b, [rcx]
    cmp r12b, '-'
    jne read_int_loop
    mov r9, 1
    inc rcx
    dec r8

read_int_loop:
    cmp r8, 0
    je read_int_apply_sign
    mov r12b, [rcx]
    cmp r12b, '0'
    jl read_int_apply_sign
    cmp r12b, '9'
    jg read_int_apply_sign
    imul r15, r15, 10
    movzx r13, r12b
    sub r13, '0'
    add r15, r13
    inc rcx
    dec r8
    jmp read_int_loop

read_int_apply_sign:
    cmp r9, 0
    je read_int_done
    neg r15

read_int_done:
    pop r13
    pop r12
    pop r10
    pop r9
    pop r8
    pop rdi
    pop rsi
    pop rdx
    pop rcx
    pop rbx
    pop rax
    pop rbp
    ret
`
